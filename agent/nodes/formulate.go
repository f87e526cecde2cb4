package orchestratornode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Dental-Assistant/agent/contract"
)

// Formulate runs one answer formulator and records its reply as the final
// answer.
func Formulate(
	ctx context.Context,
	in *GraphState,
	formulator contractx.Formulator,
	facts contractx.Facts,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if formulator == nil {
		return nil, fmt.Errorf("%w: no formulator for branch %q", contractx.ErrValidation, in.Branch)
	}

	reply, err := formulator.Formulate(ctx, contractx.FormulateRequest{
		UserMessage:   in.Text,
		MemorySummary: in.MemorySummary,
		Facts:         facts,
		Doctors:       in.Doctors,
	})
	if err != nil {
		return nil, err
	}
	in.FinalAnswer = strings.TrimSpace(reply)
	return in, nil
}

// LoadDoctors fills the doctors list used by the schedule branch. A nil
// directory leaves it empty.
func LoadDoctors(
	ctx context.Context,
	in *GraphState,
	directory contractx.DoctorDirectory,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if directory == nil {
		return in, nil
	}

	doctors, err := directory.Doctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	in.Doctors = FormatDoctors(doctors)
	return in, nil
}

// FormatDoctors renders one "- name (specialty)" line per doctor.
func FormatDoctors(doctors []contractx.Doctor) string {
	lines := make([]string, 0, len(doctors))
	for _, d := range doctors {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		if specialty := strings.TrimSpace(d.Specialty); specialty != "" {
			name += " (" + specialty + ")"
		}
		lines = append(lines, "- "+name)
	}
	return strings.Join(lines, "\n")
}
