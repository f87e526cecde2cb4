package intent

import "testing"

func TestRouteIgnoresCaseAndWhitespace(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"ServiceFAQs", "servicefaqs", " ServiceFAQs ", "SERVICEFAQS\n"} {
		if got := Route(in); got != BranchInfo {
			t.Fatalf("Route(%q) = %q, want %q", in, got, BranchInfo)
		}
	}
}

func TestRouteTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Branch
	}{
		{"Logistics", BranchInfo},
		{"logistics", BranchInfo},
		{"Schedule", BranchSchedule},
		{" schedule", BranchSchedule},
		{"SmallTalk", BranchSmallTalk},
		{"smalltalk", BranchSmallTalk},
		{"LowConfidence", BranchLow},
		{"lowconfidence", BranchLow},
	}
	for _, tt := range tests {
		if got := Route(tt.in); got != tt.want {
			t.Fatalf("Route(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRouteUnknownFallsBackToLow(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "None", "asdkj qwe", "Service FAQs", "Booking", "SmallTalk, Schedule", "{}"} {
		if got := Route(in); got != BranchLow {
			t.Fatalf("Route(%q) = %q, want %q", in, got, BranchLow)
		}
	}
}

func TestEveryLabelHasABranch(t *testing.T) {
	t.Parallel()

	known := map[Branch]bool{}
	for _, b := range Branches() {
		known[b] = true
	}
	for _, l := range Labels() {
		if !l.Valid() {
			t.Fatalf("label %q not valid", l)
		}
		if !known[l.Branch()] {
			t.Fatalf("label %q maps to unknown branch %q", l, l.Branch())
		}
	}
	if Label("Other").Branch() != BranchLow {
		t.Fatal("unknown label must map to low")
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw    string
		want   Label
		wantOK bool
	}{
		{"SmallTalk", SmallTalk, true},
		{"  schedule \n", Schedule, true},
		{"```\nLogistics\n```", Logistics, true},
		{"```json\nServiceFAQs\n```", ServiceFAQs, true},
		{`"LowConfidence"`, LowConfidence, true},
		{"Label: Schedule.", Schedule, true},
		{`{"label": "SmallTalk"}`, SmallTalk, true},
		{"**Logistics**", Logistics, true},
		{"", LowConfidence, false},
		{"asdkj qwe", LowConfidence, false},
		{"SmallTalk or Schedule", LowConfidence, false},
		{"I think it is Schedule", LowConfidence, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.raw)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("Parse(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
