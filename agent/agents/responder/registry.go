package responder

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	llmx "github.com/tanpawarit/Chative-Dental-Assistant/agent/llm"
	promptx "github.com/tanpawarit/Chative-Dental-Assistant/agent/prompt"
)

type registryImpl struct {
	summarizer    contractx.Summarizer
	classifier    contractx.Classifier
	schedule      contractx.Formulator
	info          contractx.Formulator
	smallTalk     contractx.Formulator
	lowConfidence contractx.Formulator
}

func (r *registryImpl) Summarizer() contractx.Summarizer    { return r.summarizer }
func (r *registryImpl) Classifier() contractx.Classifier    { return r.classifier }
func (r *registryImpl) Schedule() contractx.Formulator      { return r.schedule }
func (r *registryImpl) Info() contractx.Formulator          { return r.info }
func (r *registryImpl) SmallTalk() contractx.Formulator     { return r.smallTalk }
func (r *registryImpl) LowConfidence() contractx.Formulator { return r.lowConfidence }

// ModelSet holds one chat model per role. Roles may share a model.
type ModelSet struct {
	Memory     einomodel.BaseChatModel
	Classifier einomodel.BaseChatModel
	Formulator einomodel.BaseChatModel
}

// NewRegistry builds the chat models from cfg and compiles every chain.
func NewRegistry(ctx context.Context, cfg llmx.Config, apiKey string) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var models ModelSet
	for _, role := range []struct {
		role llmx.Role
		dst  *einomodel.BaseChatModel
	}{
		{llmx.RoleMemory, &models.Memory},
		{llmx.RoleClassifier, &models.Classifier},
		{llmx.RoleFormulator, &models.Formulator},
	} {
		modelCfg := cfg.OpenRouterFor(role.role, apiKey)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, role.role, err)
		}
		*role.dst = m
	}

	return NewRegistryWithModels(ctx, models, promptx.LoadPromptSet())
}

// NewRegistryWithModels compiles every chain against the given models.
func NewRegistryWithModels(ctx context.Context, models ModelSet, prompts promptx.PromptSet) (contractx.Registry, error) {
	if models.Memory == nil || models.Classifier == nil || models.Formulator == nil {
		return nil, errors.New("responder: every model role is required")
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	summarizer, err := newSummarizer(ctx, models.Memory, prompts.Memory)
	if err != nil {
		return nil, err
	}
	classifier, err := newClassifier(ctx, models.Classifier, prompts.Categorize)
	if err != nil {
		return nil, err
	}

	r := &registryImpl{summarizer: summarizer, classifier: classifier}
	for _, f := range []struct {
		name   string
		prompt string
		dst    *contractx.Formulator
	}{
		{"schedule", prompts.Schedule, &r.schedule},
		{"info", prompts.Info, &r.info},
		{"smalltalk", prompts.SmallTalk, &r.smallTalk},
		{"low_confidence", prompts.LowConfidence, &r.lowConfidence},
	} {
		formulator, err := newFormulator(ctx, f.name, models.Formulator, f.prompt)
		if err != nil {
			return nil, err
		}
		*f.dst = formulator
	}

	return r, nil
}
