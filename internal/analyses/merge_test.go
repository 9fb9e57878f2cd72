package analyses

import "testing"

func TestMergeExtractionsLongestQuoteWins(t *testing.T) {
	merged := MergeExtractions([]ExtractionPayload{
		{Features: []ExtractFeature{{ID: "room_rent", Name: "Room Rent", Value: "1% of SI", Quote: "short"}}},
		{Features: []ExtractFeature{{ID: "room_rent", Name: "Room Rent", Value: "1% of SI per day", Quote: "Room rent is limited to 1% of the sum insured per day of hospitalization."}}},
	})
	if len(merged.Features) != 1 {
		t.Fatalf("expected 1 merged feature, got %d", len(merged.Features))
	}
	if merged.Features[0].Value != "1% of SI per day" {
		t.Fatalf("expected the longer-quoted version, got %+v", merged.Features[0])
	}
}

func TestMergeExtractionsConcreteBeatsNotMentioned(t *testing.T) {
	merged := MergeExtractions([]ExtractionPayload{
		{Features: []ExtractFeature{{ID: "ncb", Name: "No Claim Bonus", Value: "not mentioned"}}},
		{Features: []ExtractFeature{{ID: "ncb", Name: "No Claim Bonus", Value: "50% per year", Quote: "Cumulative bonus of 50% per claim-free year."}}},
	})
	if merged.Features[0].Value != "50% per year" {
		t.Fatalf("expected concrete value to win, got %+v", merged.Features[0])
	}
}

func TestMergeExtractionsPolicyInfoFirstNonEmpty(t *testing.T) {
	merged := MergeExtractions([]ExtractionPayload{
		{PolicyInfo: PolicyInfo{Name: "Care Advantage"}},
		{PolicyInfo: PolicyInfo{Name: "Different Name", Insurer: "Care Health"}},
	})
	if merged.PolicyInfo.Name != "Care Advantage" {
		t.Fatalf("expected first non-empty name, got %q", merged.PolicyInfo.Name)
	}
	if merged.PolicyInfo.Insurer != "Care Health" {
		t.Fatalf("expected insurer backfilled from later chunk, got %q", merged.PolicyInfo.Insurer)
	}
}

func TestMergeExtractionsNormalizesIDs(t *testing.T) {
	merged := MergeExtractions([]ExtractionPayload{
		{Features: []ExtractFeature{{ID: "Co-Pay", Name: "Co-payment", Value: "10%"}}},
		{Features: []ExtractFeature{{ID: "co_pay", Name: "Co-payment", Value: "10%", Quote: "A co-payment of 10% applies to all claims."}}},
	})
	if len(merged.Features) != 1 {
		t.Fatalf("expected id variants to collapse, got %d features", len(merged.Features))
	}
	if merged.Features[0].ID != "co_pay" {
		t.Fatalf("expected normalized id, got %q", merged.Features[0].ID)
	}
}

func TestMergeExtractionsPreservesFirstSeenOrder(t *testing.T) {
	merged := MergeExtractions([]ExtractionPayload{
		{Features: []ExtractFeature{
			{ID: "ped_waiting_period", Name: "PED", Value: "36 months"},
			{ID: "co_pay", Name: "Co-pay", Value: "10%"},
		}},
		{Features: []ExtractFeature{
			{ID: "ncb", Name: "NCB", Value: "50%"},
			{ID: "ped_waiting_period", Name: "PED", Value: "36 months", Quote: "longer quote here"},
		}},
	})
	want := []string{"ped_waiting_period", "co_pay", "ncb"}
	if len(merged.Features) != len(want) {
		t.Fatalf("expected %d features, got %d", len(want), len(merged.Features))
	}
	for i, id := range want {
		if merged.Features[i].ID != id {
			t.Fatalf("position %d: got %q, want %q", i, merged.Features[i].ID, id)
		}
	}
}
