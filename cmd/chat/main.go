// Command chat is a local REPL against the turn pipeline. History lives in
// process memory and replies are printed instead of dispatched.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Dental-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/app"
	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Dental-Assistant/agent/history"
	configx "github.com/tanpawarit/Chative-Dental-Assistant/pkg/config"
	_ "github.com/tanpawarit/Chative-Dental-Assistant/pkg/logger/autoload"
)

type turnRunner interface {
	HandleTurn(ctx context.Context, conversationID string, text string) (orchestrator.TurnResult, error)
}

type session struct {
	turns          turnRunner
	store          history.Store
	conversationID string
	verbose        bool
	now            func() time.Time
}

// run reads one message per line until EOF or "exit".
func (s *session) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "You: ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
		case "exit", "quit":
			return nil
		case "/reset":
			if err := s.store.Reset(ctx, s.conversationID); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			} else {
				fmt.Fprintln(out, "(history cleared)")
			}
		default:
			s.turn(ctx, line, out)
		}
		fmt.Fprint(out, "You: ")
	}
	return scanner.Err()
}

func (s *session) turn(ctx context.Context, line string, out io.Writer) {
	receivedAt := s.now()
	res, err := s.turns.HandleTurn(ctx, s.conversationID, line)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return
	}
	if s.verbose {
		fmt.Fprintf(out, "[label=%s raw=%q branch=%s history=%d]\n", res.Label, res.RawLabel, res.Branch, res.History)
		if res.Summary != "" {
			fmt.Fprintf(out, "[memory] %s\n", res.Summary)
		}
	}
	fmt.Fprintf(out, "Assistant: %s\n", res.Reply)

	if err := s.store.Append(ctx, s.conversationID,
		contractx.HumanEntry(line, receivedAt),
		contractx.AgentEntry(res.Reply, s.now()),
	); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

func main() {
	verbose := flag.Bool("v", true, "print label, branch and memory summary for each turn")
	checkModel := flag.Bool("check-model", false, "verify the formulator model is offered before chatting")
	maxEntries := flag.Int("max-entries", 50, "history entries kept in memory")
	configx.ParseFlags()

	ctx := context.Background()
	store := history.NewMemoryStore(*maxEntries)
	a, err := app.Build(ctx, app.Options{WithoutDispatch: true, History: store})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build agent")
	}
	defer a.Close()

	if *checkModel {
		if err := a.CheckModel(ctx); err != nil {
			log.Fatal().Err(err).Msg("model check failed")
		}
	}

	s := &session{
		turns:          a.Turns,
		store:          store,
		conversationID: "local:cli",
		verbose:        *verbose,
		now:            time.Now,
	}
	if err := s.run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("read stdin")
	}
}
