// Package app builds the turn pipeline and its clients from the environment.
// Every entrypoint shares it; clients are only constructed when the selected
// mode needs them.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Dental-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/agents/responder"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/clinic"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/clinicapi"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/dispatch"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/history"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/inbound"
	llmx "github.com/tanpawarit/Chative-Dental-Assistant/agent/llm"
	configx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/config"
	openrouterx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/openrouter"
	qstashx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/qstash"
	"github.com/tanpawarit/Chative-Dental-Assistant/pkg/secrets"
	"github.com/tanpawarit/Chative-Dental-Assistant/pkg/sqsx"
	twiliox "github.com/tanpawarit/Chative-Dental-Assistant/pkg/twilio"
	"github.com/tanpawarit/Chative-Dental-Assistant/pkg/whatsapp"
)

type Options struct {
	// WithoutDispatch skips the dispatcher; Inbound stays nil.
	WithoutDispatch bool
	// History replaces the configured store.
	History         history.Store
}

type App struct {
	Turns    *orchestrator.Orchestrator
	History  history.Store
	Inbound  *inbound.Handler
	// Verifier is nil when no QStash signing key is configured.
	Verifier *qstashx.Receiver

	llm    llmx.Config
	apiKey string
}

// awsLoader loads the default AWS config on first use.
type awsLoader struct {
	once sync.Once
	cfg  aws.Config
	err  error
}

func (l *awsLoader) load(ctx context.Context) (aws.Config, error) {
	l.once.Do(func() {
		l.cfg, l.err = awsconfig.LoadDefaultConfig(ctx)
		if l.err != nil {
			l.err = fmt.Errorf("load aws config: %w", l.err)
		}
	})
	return l.cfg, l.err
}

func Build(ctx context.Context, opts Options) (*App, error) {
	loader := &awsLoader{}

	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, err
	}
	apiKey, err := resolveAPIKey(ctx, *llmCfg, loader)
	if err != nil {
		return nil, err
	}
	models, err := responder.NewRegistry(ctx, *llmCfg, apiKey)
	if err != nil {
		return nil, err
	}

	clinicCfg, err := configx.New[clinic.Config]("CLINIC")
	if err != nil {
		return nil, err
	}
	facts, err := clinic.Load(*clinicCfg)
	if err != nil {
		return nil, err
	}

	store := opts.History
	if store == nil {
		historyCfg, err := configx.New[history.Config]("HISTORY")
		if err != nil {
			return nil, err
		}
		if store, err = history.Open(ctx, *historyCfg); err != nil {
			return nil, err
		}
	}

	a := &App{History: store, llm: *llmCfg, apiKey: apiKey}
	if err := a.build(ctx, models, facts, loader, opts); err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, models contractx.Registry, facts contractx.Facts, loader *awsLoader, opts Options) error {
	var turnCfg orchestrator.Config
	apiCfg, err := configx.New[clinicapi.Config]("CLINIC_API")
	if err != nil {
		return err
	}
	if apiCfg.Enabled() {
		awsCfg, err := awsFor(ctx, loader, strings.EqualFold(strings.TrimSpace(apiCfg.Mode), clinicapi.ModeLambda))
		if err != nil {
			return err
		}
		client, err := clinicapi.New(*apiCfg, awsCfg)
		if err != nil {
			return err
		}
		turnCfg.Doctors = client
	}

	turns, err := orchestrator.New(models, a.History, facts, turnCfg)
	if err != nil {
		return err
	}
	a.Turns = turns

	signing, err := configx.New[qstashx.SigningConfig]("QSTASH")
	if err != nil {
		return err
	}
	if signing.Enabled() {
		if a.Verifier, err = qstashx.NewReceiver(*signing); err != nil {
			return err
		}
	}

	if opts.WithoutDispatch {
		return nil
	}

	dispatchCfg, err := configx.New[dispatch.Config]("DISPATCH")
	if err != nil {
		return err
	}
	dispatcher, err := dispatch.New(*dispatchCfg, a.builders(ctx, loader))
	if err != nil {
		return err
	}
	a.Inbound, err = inbound.NewHandler(turns, dispatcher, a.History)
	return err
}

func (a *App) builders(ctx context.Context, loader *awsLoader) dispatch.Builders {
	return dispatch.Builders{
		Meta: func() (dispatch.MetaSender, error) {
			cfg, err := configx.New[whatsapp.Config]("WHATSAPP")
			if err != nil {
				return nil, err
			}
			var source whatsapp.SecretSource
			if strings.TrimSpace(cfg.AccessToken) == "" && strings.TrimSpace(cfg.SecretPrefix) != "" {
				awsCfg, err := loader.load(ctx)
				if err != nil {
					return nil, err
				}
				source = secrets.NewManager(awsCfg)
			}
			return whatsapp.NewSender(*cfg, source)
		},
		Twilio: func() (dispatch.TwilioSender, error) {
			cfg, err := configx.New[twiliox.Config]("TWILIO")
			if err != nil {
				return nil, err
			}
			return twiliox.NewClient(*cfg)
		},
		QStash: func() (dispatch.Publisher, error) {
			cfg, err := configx.New[qstashx.Config]("QSTASH")
			if err != nil {
				return nil, err
			}
			return qstashx.NewClient(*cfg)
		},
		SQS: func() (dispatch.Publisher, error) {
			awsCfg, err := loader.load(ctx)
			if err != nil {
				return nil, err
			}
			return sqsx.NewPublisher(awsCfg), nil
		},
	}
}

// CheckModel asks the endpoint whether the formulator model is offered.
func (a *App) CheckModel(ctx context.Context) error {
	cfg := a.llm.OpenRouterFor(llmx.RoleFormulator, a.apiKey)
	return openrouterx.CheckModel(ctx, openrouterx.NewClient(cfg), cfg.Model)
}

func (a *App) Close() error {
	if a.History == nil {
		return nil
	}
	return a.History.Close()
}

func resolveAPIKey(ctx context.Context, cfg llmx.Config, loader *awsLoader) (string, error) {
	var manager *secrets.Manager
	if strings.TrimSpace(cfg.APIKey) == "" {
		awsCfg, err := loader.load(ctx)
		if err != nil {
			return "", err
		}
		manager = secrets.NewManager(awsCfg)
	}
	key, err := secrets.NewAPIKeyResolver(cfg.APIKey, manager, cfg.SecretID).Key(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve llm api key: %w", err)
	}
	log.Debug().Bool("from_secret", strings.TrimSpace(cfg.APIKey) == "").Msg("llm api key resolved")
	return key, nil
}

func awsFor(ctx context.Context, loader *awsLoader, needed bool) (aws.Config, error) {
	if !needed {
		return aws.Config{}, nil
	}
	return loader.load(ctx)
}
