package contract

import (
	"strings"
	"time"
)

type Role string

const (
	RoleHuman Role = "human"
	RoleAgent Role = "agent"
)

// Entry is one line of conversation history.
type Entry struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func HumanEntry(text string, at time.Time) Entry {
	return Entry{Role: RoleHuman, Message: text, CreatedAt: at.UTC()}
}

func AgentEntry(text string, at time.Time) Entry {
	return Entry{Role: RoleAgent, Message: text, CreatedAt: at.UTC()}
}

// Facts are the clinic details that may be quoted to users. Missing values
// stay empty strings.
type Facts struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Hours   string `json:"hours"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (f Facts) Trimmed() Facts {
	return Facts{
		Name:    strings.TrimSpace(f.Name),
		Address: strings.TrimSpace(f.Address),
		Hours:   strings.TrimSpace(f.Hours),
		Phone:   strings.TrimSpace(f.Phone),
		Website: strings.TrimSpace(f.Website),
	}
}

type SummarizeRequest struct {
	History []Entry
}

type ClassifyRequest struct {
	UserMessage   string
	MemorySummary string
}

// FormulateRequest is the input to every answer formulator. Doctors is only
// filled for the schedule branch.
type FormulateRequest struct {
	UserMessage   string
	MemorySummary string
	Facts         Facts
	Doctors       string
}

// Doctor is one entry of the appointment service's doctor directory.
type Doctor struct {
	ID        string `json:"doctorId"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}
