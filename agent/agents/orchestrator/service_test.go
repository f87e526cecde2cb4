package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
)

type fakeHistory struct {
	entries []contractx.Entry
	err     error
	loads   []string
}

func (f *fakeHistory) Load(ctx context.Context, conversationID string) ([]contractx.Entry, error) {
	f.loads = append(f.loads, conversationID)
	if f.err != nil {
		return nil, f.err
	}
	return append([]contractx.Entry(nil), f.entries...), nil
}

type fakeSummarizer struct {
	summary string
	err     error
	reqs    []contractx.SummarizeRequest
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req contractx.SummarizeRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.summary, nil
}

type fakeClassifier struct {
	label string
	err   error
	reqs  []contractx.ClassifyRequest
}

func (f *fakeClassifier) Classify(ctx context.Context, req contractx.ClassifyRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.label, nil
}

type fakeFormulator struct {
	reply string
	err   error
	reqs  []contractx.FormulateRequest
}

func (f *fakeFormulator) Formulate(ctx context.Context, req contractx.FormulateRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeDoctors struct {
	doctors []contractx.Doctor
	err     error
	calls   int
}

func (f *fakeDoctors) Doctors(ctx context.Context) ([]contractx.Doctor, error) {
	f.calls++
	return f.doctors, f.err
}

type fakeRegistry struct {
	summarizer *fakeSummarizer
	classifier *fakeClassifier
	schedule   *fakeFormulator
	info       *fakeFormulator
	smallTalk  *fakeFormulator
	low        *fakeFormulator
}

func newFakeRegistry(label string) *fakeRegistry {
	return &fakeRegistry{
		summarizer: &fakeSummarizer{summary: "User is new."},
		classifier: &fakeClassifier{label: label},
		schedule:   &fakeFormulator{reply: "Which day works for you?"},
		info:       &fakeFormulator{reply: "We are open Mon-Fri 9am-6pm."},
		smallTalk:  &fakeFormulator{reply: "Hello, how can I help?"},
		low:        &fakeFormulator{reply: "Could you tell me more?"},
	}
}

func (f *fakeRegistry) Summarizer() contractx.Summarizer    { return f.summarizer }
func (f *fakeRegistry) Classifier() contractx.Classifier    { return f.classifier }
func (f *fakeRegistry) Schedule() contractx.Formulator      { return f.schedule }
func (f *fakeRegistry) Info() contractx.Formulator          { return f.info }
func (f *fakeRegistry) SmallTalk() contractx.Formulator     { return f.smallTalk }
func (f *fakeRegistry) LowConfidence() contractx.Formulator { return f.low }

func (f *fakeRegistry) formulatorCalls() map[intent.Branch]int {
	return map[intent.Branch]int{
		intent.BranchSchedule:  len(f.schedule.reqs),
		intent.BranchInfo:      len(f.info.reqs),
		intent.BranchSmallTalk: len(f.smallTalk.reqs),
		intent.BranchLow:       len(f.low.reqs),
	}
}

var testFacts = contractx.Facts{
	Name:  "Opal Dental",
	Hours: "Mon-Fri 9am-6pm",
	Phone: "+1 555 0100",
}

func TestHandleTurnInvalidInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, newFakeRegistry("SmallTalk"), nil, Config{})

	_, err := o.HandleTurn(context.Background(), "   ", "hello")
	if !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("expected ErrInvalidConversation, got %v", err)
	}

	_, err = o.HandleTurn(context.Background(), "c1", "    ")
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleTurnRoutesEveryLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw        string
		wantLabel  intent.Label
		wantBranch intent.Branch
	}{
		{raw: "ServiceFAQs", wantLabel: intent.ServiceFAQs, wantBranch: intent.BranchInfo},
		{raw: " logistics ", wantLabel: intent.Logistics, wantBranch: intent.BranchInfo},
		{raw: "Schedule", wantLabel: intent.Schedule, wantBranch: intent.BranchSchedule},
		{raw: "SMALLTALK", wantLabel: intent.SmallTalk, wantBranch: intent.BranchSmallTalk},
		{raw: "LowConfidence", wantLabel: intent.LowConfidence, wantBranch: intent.BranchLow},
		{raw: "", wantLabel: intent.LowConfidence, wantBranch: intent.BranchLow},
		{raw: "Booking", wantLabel: intent.LowConfidence, wantBranch: intent.BranchLow},
		{raw: "ServiceFAQs or Logistics", wantLabel: intent.LowConfidence, wantBranch: intent.BranchLow},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()

			reg := newFakeRegistry(tt.raw)
			o := newTestOrchestrator(t, reg, nil, Config{})

			out, err := o.HandleTurn(context.Background(), "conv-1", "some question")
			if err != nil {
				t.Fatalf("HandleTurn() error = %v", err)
			}
			if out.Label != tt.wantLabel || out.Branch != tt.wantBranch {
				t.Fatalf("label/branch = %s/%s, want %s/%s", out.Label, out.Branch, tt.wantLabel, tt.wantBranch)
			}
			if strings.TrimSpace(out.Reply) == "" {
				t.Fatal("reply is empty")
			}
			for branch, calls := range reg.formulatorCalls() {
				want := 0
				if branch == tt.wantBranch {
					want = 1
				}
				if calls != want {
					t.Fatalf("%s formulator called %d times, want %d", branch, calls, want)
				}
			}
		})
	}
}

func TestHandleTurnThreadsHistoryAndMemory(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry("Logistics")
	history := &fakeHistory{entries: []contractx.Entry{
		{Role: contractx.RoleHuman, Message: "Do you do whitening?"},
		{Role: contractx.RoleAgent, Message: "Yes, we do."},
	}}
	o := newTestOrchestrator(t, reg, history, Config{})

	out, err := o.HandleTurn(context.Background(), "conv-7", "  What are your hours? ")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if len(history.loads) != 1 || history.loads[0] != "conv-7" {
		t.Fatalf("history loads = %v", history.loads)
	}
	got := reg.summarizer.reqs[0].History
	if len(got) != 3 {
		t.Fatalf("summarizer history len = %d, want 3", len(got))
	}
	if last := got[2]; last.Role != contractx.RoleHuman || last.Message != "What are your hours?" {
		t.Fatalf("last entry = %#v", last)
	}
	if reg.classifier.reqs[0].MemorySummary != "User is new." {
		t.Fatalf("classifier memory = %q", reg.classifier.reqs[0].MemorySummary)
	}

	req := reg.info.reqs[0]
	if req.UserMessage != "What are your hours?" || req.MemorySummary != "User is new." {
		t.Fatalf("formulate request = %#v", req)
	}
	if req.Facts.Hours != "Mon-Fri 9am-6pm" {
		t.Fatalf("facts = %#v", req.Facts)
	}
	if out.Summary != "User is new." || out.History != 3 || out.RawLabel != "Logistics" {
		t.Fatalf("turn result = %#v", out)
	}
}

func TestHandleTurnScheduleIncludesDoctors(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry("Schedule")
	doctors := &fakeDoctors{doctors: []contractx.Doctor{
		{ID: "d1", Name: "Dr. Ana Lima", Specialty: "orthodontics"},
		{ID: "d2", Name: "Dr. Ben Cole"},
	}}
	o := newTestOrchestrator(t, reg, nil, Config{Doctors: doctors})

	if _, err := o.HandleTurn(context.Background(), "conv-2", "I want to book a cleaning"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	want := "- Dr. Ana Lima (orthodontics)\n- Dr. Ben Cole"
	if got := reg.schedule.reqs[0].Doctors; got != want {
		t.Fatalf("doctors = %q, want %q", got, want)
	}

	// Other branches never consult the directory.
	reg2 := newFakeRegistry("SmallTalk")
	doctors2 := &fakeDoctors{}
	o2 := newTestOrchestrator(t, reg2, nil, Config{Doctors: doctors2})
	if _, err := o2.HandleTurn(context.Background(), "conv-3", "thanks!"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if doctors2.calls != 0 {
		t.Fatalf("doctor directory called %d times on smalltalk", doctors2.calls)
	}
}

func TestHandleTurnDoctorDirectoryErrorPropagates(t *testing.T) {
	t.Parallel()

	upstream := errors.New("clinic api down")
	reg := newFakeRegistry("Schedule")
	o := newTestOrchestrator(t, reg, nil, Config{Doctors: &fakeDoctors{err: upstream}})

	_, err := o.HandleTurn(context.Background(), "conv-4", "book me in")
	if !errors.Is(err, upstream) {
		t.Fatalf("expected directory error, got %v", err)
	}
	if len(reg.schedule.reqs) != 0 {
		t.Fatal("schedule formulator must not run after directory failure")
	}
}

func TestHandleTurnEmptyReply(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry("SmallTalk")
	reg.smallTalk.reply = "   "
	o := newTestOrchestrator(t, reg, nil, Config{})

	_, err := o.HandleTurn(context.Background(), "conv-5", "hi")
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "smalltalk branch returned empty message") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestHandleTurnUpstreamFailuresStopTheTurn(t *testing.T) {
	t.Parallel()

	historyErr := errors.New("redis unavailable")
	reg := newFakeRegistry("SmallTalk")
	o := newTestOrchestrator(t, reg, &fakeHistory{err: historyErr}, Config{})
	if _, err := o.HandleTurn(context.Background(), "conv-6", "hi"); !errors.Is(err, historyErr) {
		t.Fatalf("expected history error, got %v", err)
	}
	if len(reg.summarizer.reqs) != 0 {
		t.Fatal("summarizer must not run after history failure")
	}

	modelErr := errors.New("model timeout")
	reg2 := newFakeRegistry("SmallTalk")
	reg2.summarizer.err = modelErr
	o2 := newTestOrchestrator(t, reg2, nil, Config{})
	if _, err := o2.HandleTurn(context.Background(), "conv-6", "hi"); !errors.Is(err, modelErr) {
		t.Fatalf("expected summarizer error, got %v", err)
	}
	if len(reg2.classifier.reqs) != 0 {
		t.Fatal("classifier must not run after summarizer failure")
	}
}

func TestNewRejectsIncompleteTable(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	delete(table.Branches, intent.BranchSmallTalk)
	if _, err := New(newFakeRegistry("x"), nil, testFacts, Config{Table: &table}); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("missing branch: expected ErrConfig, got %v", err)
	}

	table = DefaultTable()
	table.Branches[intent.BranchInfo] = []State{StateFormulateInfo, StateLoadDoctors}
	if _, err := New(newFakeRegistry("x"), nil, testFacts, Config{Table: &table}); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("non-terminal branch end: expected ErrConfig, got %v", err)
	}

	table = DefaultTable()
	table.Branches[intent.BranchLow] = []State{StateFormulateInfo}
	if _, err := New(newFakeRegistry("x"), nil, testFacts, Config{Table: &table}); !errors.Is(err, contractx.ErrConfig) {
		t.Fatalf("reused state: expected ErrConfig, got %v", err)
	}

	if _, err := New(nil, nil, testFacts, Config{}); err == nil {
		t.Fatal("expected error without registry")
	}
}

func newTestOrchestrator(
	t *testing.T,
	registry contractx.Registry,
	history contractx.HistoryReader,
	cfg Config,
) *Orchestrator {
	t.Helper()
	o, err := New(registry, history, testFacts, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}
