package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Dental-Assistant/agent/prompt"
)

type fakeChatModel struct {
	mu     sync.Mutex
	reply  func(system, user string) (string, error)
	inputs [][]*schema.Message
}

var _ einomodel.BaseChatModel = (*fakeChatModel)(nil)

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()

	var system, user string
	for _, m := range input {
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}
	text, err := f.reply(system, user)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakeChatModel) lastUser() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	for _, m := range f.inputs[len(f.inputs)-1] {
		if m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}

func (f *fakeChatModel) lastSystem() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return ""
	}
	for _, m := range f.inputs[len(f.inputs)-1] {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

func fixed(text string) func(string, string) (string, error) {
	return func(string, string) (string, error) { return text, nil }
}

func newTestRegistry(t *testing.T, memory, classifier, formulator *fakeChatModel) contractx.Registry {
	t.Helper()
	r, err := NewRegistryWithModels(context.Background(), ModelSet{
		Memory:     memory,
		Classifier: classifier,
		Formulator: formulator,
	}, promptx.LoadPromptSet())
	if err != nil {
		t.Fatalf("NewRegistryWithModels() error = %v", err)
	}
	return r
}

func TestSummarizeEmptyHistorySkipsModel(t *testing.T) {
	t.Parallel()

	memory := &fakeChatModel{reply: fixed("should not be used")}
	r := newTestRegistry(t, memory, &fakeChatModel{reply: fixed("SmallTalk")}, &fakeChatModel{reply: fixed("Hi.")})

	got, err := r.Summarizer().Summarize(context.Background(), contractx.SummarizeRequest{})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Summarize() = %q, want empty", got)
	}
	if memory.calls() != 0 {
		t.Fatalf("model called %d times for empty history", memory.calls())
	}
}

func TestSummarizeKeepsLastTenEntries(t *testing.T) {
	t.Parallel()

	memory := &fakeChatModel{reply: fixed("  The user wants a cleaning.  ")}
	r := newTestRegistry(t, memory, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")})

	history := make([]contractx.Entry, 0, 15)
	for i := 1; i <= 15; i++ {
		role := contractx.RoleHuman
		if i%2 == 0 {
			role = contractx.RoleAgent
		}
		history = append(history, contractx.Entry{Role: role, Message: fmt.Sprintf("entry-%02d", i)})
	}

	got, err := r.Summarizer().Summarize(context.Background(), contractx.SummarizeRequest{History: history})
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if got != "The user wants a cleaning." {
		t.Fatalf("Summarize() = %q", got)
	}

	prompt := memory.lastUser()
	for i := 1; i <= 5; i++ {
		if strings.Contains(prompt, fmt.Sprintf("entry-%02d", i)) {
			t.Fatalf("prompt contains dropped entry-%02d:\n%s", i, prompt)
		}
	}
	for i := 6; i <= 15; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("entry-%02d", i)) {
			t.Fatalf("prompt missing entry-%02d:\n%s", i, prompt)
		}
	}
	if lines := strings.Count(prompt, `{"role":`); lines != MaxSummaryEntries {
		t.Fatalf("prompt has %d history lines, want %d", lines, MaxSummaryEntries)
	}
}

func TestSummarizeModelErrorPropagates(t *testing.T) {
	t.Parallel()

	memory := &fakeChatModel{reply: func(string, string) (string, error) { return "", errors.New("503") }}
	r := newTestRegistry(t, memory, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")})

	_, err := r.Summarizer().Summarize(context.Background(), contractx.SummarizeRequest{
		History: []contractx.Entry{{Role: contractx.RoleHuman, Message: "hi"}},
	})
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Summarize() error = %v, want ErrModelInvoke", err)
	}
}

func TestClassifyPassesMessageAndMemory(t *testing.T) {
	t.Parallel()

	classifier := &fakeChatModel{reply: fixed("  Schedule\n")}
	r := newTestRegistry(t, &fakeChatModel{reply: fixed("x")}, classifier, &fakeChatModel{reply: fixed("x")})

	got, err := r.Classifier().Classify(context.Background(), contractx.ClassifyRequest{
		UserMessage:   "Can I come tomorrow?",
		MemorySummary: "User asked about whitening.",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got != "Schedule" {
		t.Fatalf("Classify() = %q, want trimmed Schedule", got)
	}
	user := classifier.lastUser()
	if !strings.Contains(user, "Can I come tomorrow?") || !strings.Contains(user, "User asked about whitening.") {
		t.Fatalf("classifier prompt = %q", user)
	}
	if !strings.Contains(classifier.lastSystem(), "Return exactly one of") {
		t.Fatal("classifier system prompt not used")
	}
}

func TestInfoFormulatorInjectsFacts(t *testing.T) {
	t.Parallel()

	formulator := &fakeChatModel{reply: fixed("We are open Mon-Fri 9am-6pm.")}
	r := newTestRegistry(t, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")}, formulator)

	got, err := r.Info().Formulate(context.Background(), contractx.FormulateRequest{
		UserMessage: "What are your hours?",
		Facts:       contractx.Facts{Name: "Opal Dental", Hours: "Mon-Fri 9am-6pm"},
	})
	if err != nil {
		t.Fatalf("Formulate() error = %v", err)
	}
	if got != "We are open Mon-Fri 9am-6pm." {
		t.Fatalf("Formulate() = %q", got)
	}

	system := formulator.lastSystem()
	if !strings.Contains(system, "Hours: Mon-Fri 9am-6pm") || !strings.Contains(system, "Name: Opal Dental") {
		t.Fatalf("info system prompt missing facts:\n%s", system)
	}
	if strings.Contains(system, "{clinic_") {
		t.Fatalf("unrendered placeholder in prompt:\n%s", system)
	}
	if !strings.Contains(system, "- Address: \n") {
		t.Fatalf("missing address should render empty:\n%s", system)
	}
}

func TestSmallTalkWithoutClinicName(t *testing.T) {
	t.Parallel()

	formulator := &fakeChatModel{reply: fixed("Hi there, how can I help you today?")}
	r := newTestRegistry(t, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")}, formulator)

	if _, err := r.SmallTalk().Formulate(context.Background(), contractx.FormulateRequest{UserMessage: "Hi!"}); err != nil {
		t.Fatalf("Formulate() error = %v", err)
	}
	if !strings.Contains(formulator.lastSystem(), "Organization name (may be empty): \n") {
		t.Fatalf("clinic name should render empty:\n%s", formulator.lastSystem())
	}
}

func TestScheduleFormulatorIncludesDoctors(t *testing.T) {
	t.Parallel()

	formulator := &fakeChatModel{reply: fixed("Which day works for you?")}
	r := newTestRegistry(t, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")}, formulator)

	_, err := r.Schedule().Formulate(context.Background(), contractx.FormulateRequest{
		UserMessage: "I want to book",
		Doctors:     "- Dr. Ana Lima (orthodontics)",
	})
	if err != nil {
		t.Fatalf("Formulate() error = %v", err)
	}
	if !strings.Contains(formulator.lastSystem(), "Dr. Ana Lima") {
		t.Fatalf("schedule prompt missing doctors:\n%s", formulator.lastSystem())
	}
}

func TestFormulatorRejectsEmptyReply(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("x")}, &fakeChatModel{reply: fixed("  \n ")})
	_, err := r.LowConfidence().Formulate(context.Background(), contractx.FormulateRequest{UserMessage: "asdkj"})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("Formulate() error = %v, want ErrValidation", err)
	}
}

func TestCleanReply(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Sure!":                       "Sure!",
		"**Hours:** Mon-Fri":          "Hours: Mon-Fri",
		"- We are open.\n- Call us.":  "We are open. Call us.",
		"  Line one.\n\n Line two.  ": "Line one. Line two.",
		"Use `the app` to book.":      "Use the app to book.",
	}
	for in, want := range tests {
		if got := cleanReply(in); got != want {
			t.Fatalf("cleanReply(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecentHistorySkipsBlankEntries(t *testing.T) {
	t.Parallel()

	in := []contractx.Entry{
		{Role: contractx.RoleHuman, Message: "a"},
		{Role: contractx.RoleAgent, Message: "  "},
		{Role: contractx.RoleHuman, Message: "b"},
		{Role: contractx.RoleAgent, Message: "c"},
	}
	got := RecentHistory(in, 2)
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Fatalf("RecentHistory() = %#v", got)
	}
}
