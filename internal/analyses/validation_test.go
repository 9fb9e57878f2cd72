package analyses

import (
	"errors"
	"strings"
	"testing"
)

func samplePolicyText() string {
	paragraph := "This health insurance policy covers hospitalization expenses for the insured person. " +
		"The insurer shall pay the claim subject to the sum insured, the waiting period for " +
		"pre-existing diseases, and the exclusions listed in the policy schedule. A co-payment " +
		"of ten percent applies to every claim. The premium is payable annually and renewal is " +
		"guaranteed for life. Daycare treatment and ambulance cover are included as per IRDAI norms. "
	return strings.Repeat(paragraph, 4)
}

func TestValidateDocumentAcceptsPolicyText(t *testing.T) {
	if err := ValidateDocument(samplePolicyText(), 500); err != nil {
		t.Fatalf("expected valid policy text, got %v", err)
	}
}

func TestValidateDocumentTooShort(t *testing.T) {
	err := ValidateDocument("policy insured claim", 500)
	if !errors.Is(err, ErrDocumentTooShort) {
		t.Fatalf("expected ErrDocumentTooShort, got %v", err)
	}
}

func TestValidateDocumentKeywordSparse(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog near the riverbank at dawn. ", 20)
	err := ValidateDocument(text, 500)
	if !errors.Is(err, ErrNotAPolicyDocument) {
		t.Fatalf("expected ErrNotAPolicyDocument, got %v", err)
	}
}

func TestValidateDocumentSingleKeywordCannotCarry(t *testing.T) {
	// One keyword repeated over otherwise unrelated prose fails the
	// distinct-keyword floor.
	text := strings.Repeat("policy weather garden sunshine holiday mountain breakfast journey evening ", 15)
	err := ValidateDocument(text, 500)
	if !errors.Is(err, ErrNotAPolicyDocument) {
		t.Fatalf("expected ErrNotAPolicyDocument, got %v", err)
	}
}
