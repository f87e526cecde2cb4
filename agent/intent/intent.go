// Package intent holds the closed set of intent labels and the pure mapping
// from a label to the branch that answers it.
package intent

import "strings"

type Label string

const (
	ServiceFAQs   Label = "ServiceFAQs"
	Logistics     Label = "Logistics"
	SmallTalk     Label = "SmallTalk"
	LowConfidence Label = "LowConfidence"
	Schedule      Label = "Schedule"
)

type Branch string

const (
	BranchSchedule  Branch = "schedule"
	BranchInfo      Branch = "info"
	BranchSmallTalk Branch = "smalltalk"
	BranchLow       Branch = "low"
)

var labelBranches = map[Label]Branch{
	ServiceFAQs:   BranchInfo,
	Logistics:     BranchInfo,
	Schedule:      BranchSchedule,
	SmallTalk:     BranchSmallTalk,
	LowConfidence: BranchLow,
}

var labelsByFold = func() map[string]Label {
	m := make(map[string]Label, len(labelBranches))
	for l := range labelBranches {
		m[strings.ToLower(string(l))] = l
	}
	return m
}()

// Labels returns every label in a stable order.
func Labels() []Label {
	return []Label{ServiceFAQs, Logistics, SmallTalk, LowConfidence, Schedule}
}

// Branches returns every branch in a stable order.
func Branches() []Branch {
	return []Branch{BranchSchedule, BranchInfo, BranchSmallTalk, BranchLow}
}

// Branch maps a label to its branch. Labels outside the enumeration go to
// BranchLow.
func (l Label) Branch() Branch {
	if b, ok := labelBranches[l]; ok {
		return b
	}
	return BranchLow
}

func (l Label) Valid() bool {
	_, ok := labelBranches[l]
	return ok
}

// Lookup matches s against the enumeration, ignoring case and surrounding
// whitespace.
func Lookup(s string) (Label, bool) {
	l, ok := labelsByFold[strings.ToLower(strings.TrimSpace(s))]
	return l, ok
}

// Route is total over strings: unknown, empty or malformed input yields
// BranchLow.
func Route(raw string) Branch {
	l, ok := Lookup(raw)
	if !ok {
		return BranchLow
	}
	return l.Branch()
}
