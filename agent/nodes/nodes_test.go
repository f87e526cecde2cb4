package orchestratornode

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
)

var fixedNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.FixedZone("BRT", -3*60*60))

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	st, err := ValidateRequest(GraphInput{ConversationID: " t1:u1 ", Text: "  hello  "}, func() time.Time { return fixedNow })
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if st.ConversationID != "t1:u1" || st.Text != "hello" {
		t.Fatalf("state = %#v", st)
	}
	if st.Now.Location() != time.UTC {
		t.Fatalf("now not normalized to UTC: %v", st.Now)
	}

	if _, err := ValidateRequest(GraphInput{Text: "hi"}, time.Now); !errors.Is(err, ErrInvalidConversation) {
		t.Fatalf("expected ErrInvalidConversation, got %v", err)
	}
	if _, err := ValidateRequest(GraphInput{ConversationID: "c", Text: "\n"}, time.Now); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestLoadHistoryWithoutReader(t *testing.T) {
	t.Parallel()

	st, err := LoadHistory(context.Background(), &GraphState{ConversationID: "c", Text: "Hi!", Now: fixedNow}, nil)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(st.History) != 1 || st.History[0].Role != contractx.RoleHuman || st.History[0].Message != "Hi!" {
		t.Fatalf("history = %#v", st.History)
	}
}

type stubClassifier string

func (s stubClassifier) Classify(context.Context, contractx.ClassifyRequest) (string, error) {
	return string(s), nil
}

func TestCategorizeAndRoute(t *testing.T) {
	t.Parallel()

	tests := map[string]intent.Branch{
		"Logistics":          intent.BranchInfo,
		"```\nSchedule\n```": intent.BranchSchedule,
		"Label: SmallTalk.":  intent.BranchSmallTalk,
		"dunno":              intent.BranchLow,
	}
	for raw, want := range tests {
		st, err := Categorize(context.Background(), &GraphState{Text: "x"}, stubClassifier(raw))
		if err != nil {
			t.Fatalf("Categorize(%q) error = %v", raw, err)
		}
		st, err = Route(st)
		if err != nil {
			t.Fatalf("Route() error = %v", err)
		}
		if st.Branch != want {
			t.Fatalf("Categorize(%q) branch = %s, want %s", raw, st.Branch, want)
		}
		if !st.Label.Valid() {
			t.Fatalf("label %q escaped the enumeration", st.Label)
		}
	}
}

func TestFormatDoctors(t *testing.T) {
	t.Parallel()

	got := FormatDoctors([]contractx.Doctor{
		{Name: "Dr. Ana Lima", Specialty: " orthodontics "},
		{Name: "  "},
		{Name: "Dr. Ben Cole"},
	})
	want := "- Dr. Ana Lima (orthodontics)\n- Dr. Ben Cole"
	if got != want {
		t.Fatalf("FormatDoctors() = %q, want %q", got, want)
	}
	if FormatDoctors(nil) != "" {
		t.Fatal("FormatDoctors(nil) should be empty")
	}
}

func TestFinalizeReplyRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := FinalizeReply(&GraphState{Branch: intent.BranchInfo, FinalAnswer: " "})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	out, err := FinalizeReply(&GraphState{Branch: intent.BranchInfo, Label: intent.Logistics, FinalAnswer: " Open 9-6. "})
	if err != nil {
		t.Fatalf("FinalizeReply() error = %v", err)
	}
	if out.Reply != "Open 9-6." || out.Branch != intent.BranchInfo {
		t.Fatalf("output = %#v", out)
	}
}
