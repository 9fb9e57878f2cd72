package analyses

import (
	"encoding/json"
	"testing"
)

const validExtractionJSON = `{
  "policyInfo": {"name": "Care Advantage", "insurer": "Care Health", "sumInsured": "10 lakh", "policyType": "individual"},
  "features": [
    {"id": "ped_waiting_period", "name": "PED Waiting Period", "value": "36 months", "quote": "Pre-existing diseases are covered after 36 months.", "reference": "4.1"},
    {"id": "co_pay", "name": "Co-payment", "value": "10%", "quote": "A co-payment of 10% applies.", "reference": ""}
  ]
}`

func TestDecodeExtractionSuccess(t *testing.T) {
	payload, status, err := DecodeExtraction(json.RawMessage(validExtractionJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != DecodeSuccess {
		t.Fatalf("expected success, got %s", status)
	}
	if len(payload.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(payload.Features))
	}
	if payload.PolicyInfo.Insurer != "Care Health" {
		t.Fatalf("policyInfo lost: %+v", payload.PolicyInfo)
	}
}

func TestDecodeExtractionTruncatedIsPartial(t *testing.T) {
	truncated := `{"policyInfo": {"name": "Care Advantage"}, "features": [{"id": "co_pay", "name": "Co-payment", "value": "10%"}, {"id": "ncb", "name": "No Cl`
	payload, status, err := DecodeExtraction(json.RawMessage(truncated))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != DecodePartial {
		t.Fatalf("expected partial, got %s", status)
	}
	if len(payload.Features) != 1 || payload.Features[0].ID != "co_pay" {
		t.Fatalf("expected the one complete feature to survive, got %+v", payload.Features)
	}
}

func TestDecodeExtractionCodeFencedIsRepaired(t *testing.T) {
	fenced := "```json\n" + validExtractionJSON + "\n```"
	payload, status, err := DecodeExtraction(json.RawMessage(fenced))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != DecodePartial {
		t.Fatalf("expected partial for fenced output, got %s", status)
	}
	if len(payload.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(payload.Features))
	}
}

func TestDecodeExtractionGarbageFails(t *testing.T) {
	_, status, err := DecodeExtraction(json.RawMessage("I could not process the document, sorry."))
	if err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
	if status != DecodeFailure {
		t.Fatalf("expected failure, got %s", status)
	}
}

func TestDecodeExtractionMissingRequiredFails(t *testing.T) {
	_, status, err := DecodeExtraction(json.RawMessage(`{"features": [{"name": "missing id", "value": "x"}]}`))
	if err == nil {
		t.Fatalf("expected schema violation error")
	}
	if status != DecodeFailure {
		t.Fatalf("expected failure, got %s", status)
	}
}

func TestDecodeClassificationSuccess(t *testing.T) {
	raw := `{"classifications": [{"id": "maternity", "category": "GOOD", "explanation": "Covered after a standard waiting period."}]}`
	payload, status, err := DecodeClassification(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != DecodeSuccess {
		t.Fatalf("expected success, got %s", status)
	}
	if payload.Classifications[0].Category != CategoryGood {
		t.Fatalf("got %+v", payload.Classifications[0])
	}
}

func TestDecodeClassificationRejectsUnknownCategory(t *testing.T) {
	raw := `{"classifications": [{"id": "maternity", "category": "AMAZING"}]}`
	_, status, err := DecodeClassification(json.RawMessage(raw))
	if err == nil {
		t.Fatalf("expected enum violation error")
	}
	if status != DecodeFailure {
		t.Fatalf("expected failure, got %s", status)
	}
}

func TestBalanceJSONAlreadyValid(t *testing.T) {
	out, ok := balanceJSON(`{"a": 1}`)
	if !ok || out != `{"a": 1}` {
		t.Fatalf("got %q/%v", out, ok)
	}
}

func TestBalanceJSONClosesOpenContainers(t *testing.T) {
	out, ok := balanceJSON(`{"a": [1, 2`)
	if !ok {
		t.Fatalf("expected repair to succeed")
	}
	if !json.Valid([]byte(out)) {
		t.Fatalf("repaired output not valid JSON: %q", out)
	}
}
