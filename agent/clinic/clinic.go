// Package clinic loads the static clinic facts injected into replies.
package clinic

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

const DefaultContextFile = "clinic_context.json"

var ErrNoSource = errors.New("clinic context: no inline json and no file")

type Config struct {
	ContextJSON string `envconfig:"CONTEXT_JSON"`
	ContextFile string `envconfig:"CONTEXT_FILE" default:"clinic_context.json"`
}

// Load returns the clinic facts. The inline JSON wins over the file; a
// missing source or a parse failure is an error and the process should not
// serve turns.
func Load(cfg Config) (contractx.Facts, error) {
	if inline := strings.TrimSpace(cfg.ContextJSON); inline != "" {
		facts, err := Parse([]byte(inline))
		if err != nil {
			return contractx.Facts{}, fmt.Errorf("%w: clinic context json: %v", contractx.ErrConfig, err)
		}
		return facts, nil
	}

	path := strings.TrimSpace(cfg.ContextFile)
	if path == "" {
		return contractx.Facts{}, fmt.Errorf("%w: %v", contractx.ErrConfig, ErrNoSource)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return contractx.Facts{}, fmt.Errorf("%w: %v: %s", contractx.ErrConfig, ErrNoSource, path)
		}
		return contractx.Facts{}, fmt.Errorf("%w: read clinic context %s: %v", contractx.ErrConfig, path, err)
	}
	facts, err := Parse(raw)
	if err != nil {
		return contractx.Facts{}, fmt.Errorf("%w: clinic context file %s: %v", contractx.ErrConfig, path, err)
	}
	return facts, nil
}

func MustLoad(cfg Config) contractx.Facts {
	facts, err := Load(cfg)
	if err != nil {
		panic(err)
	}
	return facts
}

// Parse decodes a clinic context object. Unknown keys are ignored and
// non-string values are rejected.
func Parse(raw []byte) (contractx.Facts, error) {
	var facts contractx.Facts
	if err := json.Unmarshal(raw, &facts); err != nil {
		return contractx.Facts{}, err
	}
	return facts.Trimmed(), nil
}
