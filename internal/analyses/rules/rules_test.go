package rules

import "testing"

func TestClassifyPEDWaitingV1(t *testing.T) {
	engine := NewEngine("v1")
	cases := []struct {
		value string
		want  string
	}{
		{"23 months", CategoryGreat},
		{"24 months", CategoryGood},
		{"36 months", CategoryGood},
		{"37 months", CategoryRedFlag},
		{"2 years", CategoryGood},
		{"4 years", CategoryRedFlag},
	}
	for _, tc := range cases {
		d := engine.Classify(Input{ID: "ped_waiting_period", Value: tc.value})
		if !d.Decided {
			t.Fatalf("ped %q: expected a decision", tc.value)
		}
		if d.Category != tc.want {
			t.Fatalf("ped %q: got %s, want %s", tc.value, d.Category, tc.want)
		}
		if d.Explanation == "" {
			t.Fatalf("ped %q: missing explanation", tc.value)
		}
	}
}

func TestClassifyPEDWaitingV2MovesRedFlag(t *testing.T) {
	engine := NewEngine("v2")
	if d := engine.Classify(Input{ID: "ped_waiting_period", Value: "37 months"}); d.Category != CategoryGood {
		t.Fatalf("v2 ped 37 months: got %s, want %s", d.Category, CategoryGood)
	}
	if d := engine.Classify(Input{ID: "ped_waiting_period", Value: "49 months"}); d.Category != CategoryRedFlag {
		t.Fatalf("v2 ped 49 months: got %s, want %s", d.Category, CategoryRedFlag)
	}
}

func TestUnknownVersionFallsBackToV1(t *testing.T) {
	engine := NewEngine("v9")
	if engine.Version() != "v1" {
		t.Fatalf("expected fallback to v1, got %s", engine.Version())
	}
}

func TestNotMentionedIsUnclear(t *testing.T) {
	engine := NewEngine("v1")
	for _, value := range []string{"not mentioned", "", "N/A", "unknown"} {
		d := engine.Classify(Input{ID: "ped_waiting_period", Value: value})
		if !d.Decided || d.Category != CategoryUnclear {
			t.Fatalf("value %q: got %+v, want decided UNCLEAR", value, d)
		}
	}
}

func TestClassifyCoPay(t *testing.T) {
	engine := NewEngine("v1")
	cases := []struct {
		value string
		want  string
	}{
		{"No co-pay", CategoryGreat},
		{"0%", CategoryGreat},
		{"10%", CategoryGood},
		{"20%", CategoryRedFlag},
	}
	for _, tc := range cases {
		d := engine.Classify(Input{ID: "co_pay", Value: tc.value})
		if !d.Decided || d.Category != tc.want {
			t.Fatalf("co_pay %q: got %+v, want %s", tc.value, d, tc.want)
		}
	}
}

func TestClassifyRoomRent(t *testing.T) {
	engine := NewEngine("v1")
	cases := []struct {
		value string
		want  string
	}{
		{"No limit", CategoryGreat},
		{"Single private room", CategoryGreat},
		{"1% of SI per day", CategoryRedFlag},
		{"2% of sum insured per day", CategoryGood},
		{"Shared room only", CategoryRedFlag},
	}
	for _, tc := range cases {
		d := engine.Classify(Input{ID: "room_rent", Value: tc.value})
		if !d.Decided || d.Category != tc.want {
			t.Fatalf("room_rent %q: got %+v, want %s", tc.value, d, tc.want)
		}
	}
}

func TestUndecidedFeatureGoesToFallback(t *testing.T) {
	engine := NewEngine("v1")
	d := engine.Classify(Input{ID: "maternity", Value: "Covered after 9 months with sub-limits"})
	if d.Decided {
		t.Fatalf("expected undecided for feature with no table, got %+v", d)
	}
}

func TestParseMonthsRangeTakesWorstCase(t *testing.T) {
	months, ok := parseMonths("24 to 36 months")
	if !ok || months != 36 {
		t.Fatalf("got %d/%v, want 36/true", months, ok)
	}
}
