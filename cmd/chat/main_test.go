package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tanpawarit/Chative-Dental-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/history"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/intent"
)

type echoTurns struct {
	seen []string
}

func (e *echoTurns) HandleTurn(ctx context.Context, conversationID string, text string) (orchestrator.TurnResult, error) {
	e.seen = append(e.seen, text)
	if text == "boom" {
		return orchestrator.TurnResult{}, errors.New("model down")
	}
	return orchestrator.TurnResult{
		Reply:  "re: " + text,
		Label:  intent.SmallTalk,
		Branch: intent.BranchSmallTalk,
	}, nil
}

func newSession(turns turnRunner, store history.Store) *session {
	return &session{
		turns:          turns,
		store:          store,
		conversationID: "local:test",
		verbose:        true,
		now:            func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func TestSessionRun(t *testing.T) {
	t.Parallel()

	turns := &echoTurns{}
	store := history.NewMemoryStore(10)
	s := newSession(turns, store)

	var out bytes.Buffer
	if err := s.run(context.Background(), strings.NewReader("hello\n\nboom\nexit\nignored\n"), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if len(turns.seen) != 2 {
		t.Fatalf("turns = %v, want hello and boom only", turns.seen)
	}
	text := out.String()
	if !strings.Contains(text, "Assistant: re: hello") {
		t.Fatalf("output missing reply:\n%s", text)
	}
	if !strings.Contains(text, "branch=smalltalk") {
		t.Fatalf("output missing debug line:\n%s", text)
	}
	if !strings.Contains(text, "error: model down") {
		t.Fatalf("output missing error:\n%s", text)
	}

	entries, err := store.Load(context.Background(), "local:test")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("history has %d entries, want 2", len(entries))
	}
}

func TestSessionReset(t *testing.T) {
	t.Parallel()

	store := history.NewMemoryStore(10)
	s := newSession(&echoTurns{}, store)

	var out bytes.Buffer
	if err := s.run(context.Background(), strings.NewReader("hi\n/reset\n"), &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	entries, _ := store.Load(context.Background(), "local:test")
	if len(entries) != 0 {
		t.Fatalf("history has %d entries after reset", len(entries))
	}
	if !strings.Contains(out.String(), "(history cleared)") {
		t.Fatalf("output missing reset notice:\n%s", out.String())
	}
}
