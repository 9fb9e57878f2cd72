package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"policy-backend/internal/analyses/rules"
	"policy-backend/internal/llm"
	"policy-backend/internal/shared/cache"
)

const stubExtractionJSON = `{
  "policyInfo": {"name": "Care Advantage", "insurer": "Care Health", "sumInsured": "10 lakh", "policyType": "individual"},
  "features": [
    {"id": "ped_waiting_period", "name": "PED Waiting Period", "value": "36 months", "quote": "Pre-existing diseases are covered after 36 months of continuous coverage.", "reference": "4.1"},
    {"id": "co_pay", "name": "Co-payment", "value": "20%", "quote": "A co-payment of 20% applies to all claims.", "reference": "5.2"},
    {"id": "maternity", "name": "Maternity Cover", "value": "Covered after 24 months with sub-limits", "quote": "Maternity expenses are covered after 24 months.", "reference": "6.3"}
  ]
}`

const stubClassificationJSON = `{
  "classifications": [
    {"id": "maternity", "category": "GOOD", "explanation": "Maternity cover after a two-year wait is standard."}
  ]
}`

type stubLLM struct {
	mu            sync.Mutex
	analyzeCalls  int
	classifyCalls int
	fixCalls      int
	analyzeErrs   []error
	classifyErr   error
	extraction    string
	classify      string
	fixOutput     string
}

func newStubLLM() *stubLLM {
	return &stubLLM{extraction: stubExtractionJSON, classify: stubClassificationJSON}
}

func (s *stubLLM) AnalyzePolicy(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := llm.FixJSONFromContext(ctx); ok {
		s.fixCalls++
		if s.fixOutput != "" {
			return json.RawMessage(s.fixOutput), nil
		}
		return json.RawMessage(s.extraction), nil
	}
	s.analyzeCalls++
	if len(s.analyzeErrs) > 0 {
		err := s.analyzeErrs[0]
		s.analyzeErrs = s.analyzeErrs[1:]
		return nil, err
	}
	return json.RawMessage(s.extraction), nil
}

func (s *stubLLM) ClassifyFeatures(ctx context.Context, input llm.ClassifyInput) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifyCalls++
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	return json.RawMessage(s.classify), nil
}

func (s *stubLLM) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzeCalls, s.classifyCalls
}

func newTestService(stub *stubLLM) *Service {
	return &Service{
		Repo:  NewMemoryRepo(),
		LLM:   stub,
		Cache: cache.New(16, time.Hour),
		Rules: rules.NewEngine("v1"),

		Provider:      "openai",
		Model:         "gpt-4o-mini",
		PromptVersion: "v1",

		MinDocumentChars: 500,
		ChunkSize:        24000,
		ChunkOverlap:     2000,
		MaxChunks:        4,
		AnalyzeTimeout:   10 * time.Second,
	}
}

func bucketIDs(result map[string]any, bucket string) []string {
	raw, _ := result[bucket].([]any)
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		if f, ok := item.(map[string]any); ok {
			if id, ok := f["id"].(string); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func TestAnalyzeTextHappyPath(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)

	result, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ids := bucketIDs(result, "goodFeatures"); len(ids) != 2 {
		t.Fatalf("expected ped and maternity in goodFeatures, got %v", ids)
	}
	if ids := bucketIDs(result, "redFlags"); len(ids) != 1 || ids[0] != "co_pay" {
		t.Fatalf("expected co_pay in redFlags, got %v", ids)
	}

	summary, _ := result["summary"].(map[string]any)
	if summary["totalFeatures"] != float64(3) {
		t.Fatalf("expected 3 total features, got %v", summary["totalFeatures"])
	}

	meta, _ := result["_meta"].(map[string]any)
	if meta["cached"] != false {
		t.Fatalf("first run must not be cached, got %v", meta["cached"])
	}
	if _, ok := result["_cached"]; ok {
		t.Fatalf("first run must not carry _cached")
	}

	analyzeCalls, classifyCalls := stub.calls()
	if analyzeCalls != 1 {
		t.Fatalf("expected 1 analyze call for a single chunk, got %d", analyzeCalls)
	}
	if classifyCalls != 1 {
		t.Fatalf("expected 1 classify fallback call, got %d", classifyCalls)
	}
}

func TestAnalyzeTextClassifiedByRecordsStage(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)

	result, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byID := map[string]string{}
	for _, bucket := range []string{"greatFeatures", "goodFeatures", "redFlags", "needsClarification"} {
		raw, _ := result[bucket].([]any)
		for _, item := range raw {
			f := item.(map[string]any)
			byID[f["id"].(string)] = f["classifiedBy"].(string)
		}
	}
	if byID["ped_waiting_period"] != ClassifiedByCode {
		t.Fatalf("ped should be rule-classified, got %q", byID["ped_waiting_period"])
	}
	if byID["maternity"] != ClassifiedByLLM {
		t.Fatalf("maternity should be LLM-classified, got %q", byID["maternity"])
	}
}

func TestAnalyzeTextShortDocRejectedBeforeLLM(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)

	_, err := svc.AnalyzeText(context.Background(), "anonymous", "too short")
	if !errors.Is(err, ErrDocumentTooShort) {
		t.Fatalf("expected ErrDocumentTooShort, got %v", err)
	}
	if analyzeCalls, _ := stub.calls(); analyzeCalls != 0 {
		t.Fatalf("short document must not reach the LLM, got %d calls", analyzeCalls)
	}
}

func TestAnalyzeTextCacheHitSkipsLLM(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)
	text := samplePolicyText()

	if _, err := svc.AnalyzeText(context.Background(), "anonymous", text); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls, _ := stub.calls()

	result, err := svc.AnalyzeText(context.Background(), "anonymous", text)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	secondCalls, _ := stub.calls()
	if secondCalls != firstCalls {
		t.Fatalf("cache hit must not call the LLM: %d -> %d", firstCalls, secondCalls)
	}

	meta, _ := result["_meta"].(map[string]any)
	if meta["cached"] != true {
		t.Fatalf("expected cached flag on warm hit, got %v", meta["cached"])
	}
	if result["_cached"] != true {
		t.Fatalf("expected top-level _cached on warm hit, got %v", result["_cached"])
	}
}

func TestAnalyzeTextCacheKeyIgnoresWhitespace(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)
	text := samplePolicyText()

	if _, err := svc.AnalyzeText(context.Background(), "anonymous", text); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstCalls, _ := stub.calls()

	if _, err := svc.AnalyzeText(context.Background(), "anonymous", "  "+text+"\n\n"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if secondCalls, _ := stub.calls(); secondCalls != firstCalls {
		t.Fatalf("whitespace-only difference must hit the cache: %d -> %d", firstCalls, secondCalls)
	}
}

func TestAnalyzeTextRetriesOn5xx(t *testing.T) {
	stub := newStubLLM()
	stub.analyzeErrs = []error{
		&llm.UpstreamError{Provider: "openai", StatusCode: http.StatusInternalServerError, Message: "upstream blip"},
	}
	svc := newTestService(stub)

	if _, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText()); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if analyzeCalls, _ := stub.calls(); analyzeCalls != 2 {
		t.Fatalf("expected 2 analyze calls (1 failure + 1 retry), got %d", analyzeCalls)
	}
}

func TestAnalyzeTextDoesNotRetryAuthFailure(t *testing.T) {
	stub := newStubLLM()
	stub.analyzeErrs = []error{
		&llm.UpstreamError{Provider: "openai", StatusCode: http.StatusUnauthorized, Message: "bad key"},
	}
	svc := newTestService(stub)

	_, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	var upstream *llm.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if analyzeCalls, _ := stub.calls(); analyzeCalls != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", analyzeCalls)
	}
}

func TestAnalyzeTextClassifyFailureDegradesToUnclear(t *testing.T) {
	stub := newStubLLM()
	stub.classifyErr = &llm.UpstreamError{Provider: "openai", StatusCode: http.StatusBadRequest, Message: "rejected"}
	svc := newTestService(stub)

	result, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	if err != nil {
		t.Fatalf("fallback failure must not fail the analysis: %v", err)
	}
	ids := bucketIDs(result, "needsClarification")
	if len(ids) != 1 || ids[0] != "maternity" {
		t.Fatalf("expected maternity degraded to needsClarification, got %v", ids)
	}
}

func TestAnalyzeTextRepairsMalformedOutputViaFixPass(t *testing.T) {
	stub := newStubLLM()
	stub.extraction = "Sure! Here is the extraction you asked for."
	stub.fixOutput = stubExtractionJSON
	svc := newTestService(stub)

	result, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	if err != nil {
		t.Fatalf("fix-json pass should recover malformed output: %v", err)
	}
	stub.mu.Lock()
	fixCalls := stub.fixCalls
	stub.mu.Unlock()
	if fixCalls != 1 {
		t.Fatalf("expected 1 fix-json pass, got %d", fixCalls)
	}
	if ids := bucketIDs(result, "redFlags"); len(ids) != 1 || ids[0] != "co_pay" {
		t.Fatalf("repaired output must flow through classification, got %v", ids)
	}
}

func TestAnalyzeTextGarbageLLMOutputFails(t *testing.T) {
	stub := newStubLLM()
	stub.extraction = "not json at all"
	svc := newTestService(stub)

	_, err := svc.AnalyzeText(context.Background(), "anonymous", samplePolicyText())
	if err == nil {
		t.Fatalf("expected parse failure")
	}
	if code := classifyFailure(err); code != ErrorCodeResponseParse {
		t.Fatalf("expected %s, got %s", ErrorCodeResponseParse, code)
	}
}

func TestAnalyzeTextRecordsHistory(t *testing.T) {
	stub := newStubLLM()
	svc := newTestService(stub)

	if _, err := svc.AnalyzeText(context.Background(), "guest:abc", samplePolicyText()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := svc.List(context.Background(), "guest:abc", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(records))
	}
	if records[0].Status != StatusCompleted || records[0].ContentHash == "" {
		t.Fatalf("bad record: %+v", records[0])
	}
}
