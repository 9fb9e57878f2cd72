package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"policy-backend/internal/analyses/rules"
	"policy-backend/internal/documents"
	"policy-backend/internal/extract"
	"policy-backend/internal/llm"
	"policy-backend/internal/shared/cache"
	"policy-backend/internal/shared/metrics"
	"policy-backend/internal/shared/storage/object"
	"policy-backend/internal/shared/telemetry"
	"policy-backend/internal/shared/util"
)

// Service contains business logic for policy analyses.
type Service struct {
	Repo    Repo
	DocRepo documents.Repo
	Store   object.ObjectStore
	LLM     llm.Client
	Cache   *cache.Store
	Rules   *rules.Engine

	Provider      string
	Model         string
	PromptVersion string

	MinDocumentChars int
	ChunkSize        int
	ChunkOverlap     int
	MaxChunks        int
	AnalyzeTimeout   time.Duration
}

// AnalyzeText runs the full pipeline synchronously over raw policy text and
// returns the formatted result. Results are cached by normalized content
// hash; a warm hit skips the LLM entirely and is marked cached in _meta.
func (s *Service) AnalyzeText(ctx context.Context, userID, policyText string) (map[string]any, error) {
	if err := ValidateDocument(policyText, s.MinDocumentChars); err != nil {
		metrics.IncAnalysisRejected()
		return nil, err
	}

	cacheKey := util.ContentHash(policyText, s.analysisVersion())
	if s.Cache != nil {
		if entry, ok := s.Cache.Get(cacheKey); ok {
			metrics.IncCacheHit()
			var result map[string]any
			if err := json.Unmarshal(entry.Value, &result); err == nil {
				markCached(result)
				return result, nil
			}
			log.Printf("analysis cache entry unreadable key=%s", cacheKey[:12])
		}
		metrics.IncCacheMiss()
	}

	metrics.IncAnalysisStarted()
	startedAt := time.Now().UTC()

	runCtx := ctx
	if s.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.AnalyzeTimeout)
		defer cancel()
	}

	analysisID := uuid.NewString()
	formatted, err := s.runPipeline(runCtx, analysisID, policyText)
	if err != nil {
		metrics.IncAnalysisFailed()
		return nil, err
	}

	completedAt := time.Now().UTC()
	formatted.Meta.DurationMs = durationMs(&startedAt, &completedAt)

	result, err := resultToMap(formatted)
	if err != nil {
		metrics.IncAnalysisFailed()
		return nil, fmt.Errorf("encode result: %w", err)
	}

	if s.Cache != nil {
		if payload, err := json.Marshal(result); err == nil {
			s.Cache.Set(cacheKey, payload, s.analysisVersion())
		}
	}

	s.recordCompleted(ctx, analysisID, userID, cacheKey, result, startedAt, completedAt)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	return result, nil
}

// Create enqueues an analysis of an uploaded document and kicks off
// asynchronous completion.
func (s *Service) Create(ctx context.Context, documentID, userID string) (Analysis, error) {
	if documentID == "" || userID == "" {
		return Analysis{}, errors.New("documentID and userID are required")
	}

	analysis := Analysis{
		ID:             uuid.NewString(),
		DocumentID:     documentID,
		UserID:         userID,
		Status:         StatusQueued,
		Provider:       s.Provider,
		Model:          s.Model,
		PromptVersion:  s.PromptVersion,
		RulesetVersion: s.rulesetVersion(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	go s.completeAsync(backgroundWithRequestID(ctx), analysis.ID)

	return analysis, nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) completeAsync(ctx context.Context, analysisID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, "", "", fmt.Errorf("panic: %v", r), nil)
		}
	}()
	startedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatusAndError(ctx, analysisID, StatusProcessing, nil, nil, &startedAt, nil); err != nil {
		s.failAnalysis(ctx, analysisID, "", "", fmt.Errorf("set processing failed: %w", err), &startedAt)
		return
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, "", "", fmt.Errorf("analysis lookup: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"document_id":       analysis.DocumentID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": "queued->processing",
	})
	if s.DocRepo == nil || s.Store == nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, errors.New("missing document store dependencies"), &startedAt)
		return
	}

	runCtx := ctx
	if s.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.AnalyzeTimeout)
		defer cancel()
	}

	text, err := s.loadDocumentText(runCtx, analysis.UserID, analysis.DocumentID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, err, &startedAt)
		return
	}

	if err := ValidateDocument(text, s.MinDocumentChars); err != nil {
		metrics.IncAnalysisRejected()
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, err, &startedAt)
		return
	}

	formatted, err := s.runPipeline(runCtx, analysisID, text)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, err, &startedAt)
		return
	}

	completedAt := time.Now().UTC()
	formatted.Meta.DurationMs = durationMs(&startedAt, &completedAt)

	result, err := resultToMap(formatted)
	if err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, fmt.Errorf("encode result: %w", err), &startedAt)
		return
	}

	if err := s.Repo.UpdateResult(ctx, analysisID, result, &completedAt); err != nil {
		s.failAnalysis(ctx, analysisID, analysis.UserID, analysis.DocumentID, fmt.Errorf("set analysis result failed: %w", err), &startedAt)
		return
	}
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           analysis.UserID,
		"document_id":       analysis.DocumentID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
}

// runPipeline is the shared core: chunk, extract per chunk concurrently,
// merge, rule-classify with LLM fallback, format.
func (s *Service) runPipeline(ctx context.Context, analysisID, text string) (AnalysisResult, error) {
	if s.LLM == nil {
		return AnalysisResult{}, errors.New("missing llm client")
	}
	llmClient := newRetryingLLM(s.LLM, analysisID, requestIDFromContext(ctx))

	chunks := SplitIntoChunks(text, s.ChunkSize, s.ChunkOverlap, s.MaxChunks)

	payloads := make([]ExtractionPayload, len(chunks))
	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk Chunk) {
			defer wg.Done()
			input := llm.AnalyzeInput{
				PolicyText:    chunk.Text,
				ChunkIndex:    chunk.Index,
				ChunkCount:    len(chunks),
				PromptVersion: s.PromptVersion,
			}
			raw, err := llmClient.AnalyzePolicy(ctx, input)
			if err != nil {
				errs[i] = fmt.Errorf("llm analyze chunk=%d: %w", chunk.Index, err)
				return
			}
			payload, status, err := DecodeExtraction(raw)
			if err != nil {
				// One provider-side repair pass before giving up on the chunk.
				log.Printf("extraction fix-json pass analysis_id=%s chunk=%d", analysisID, chunk.Index)
				fixed, fixErr := llmClient.AnalyzePolicy(llm.WithFixJSON(ctx, string(raw)), input)
				if fixErr == nil {
					payload, status, err = DecodeExtraction(fixed)
				}
			}
			if err != nil {
				errs[i] = fmt.Errorf("llm output parse chunk=%d: %w", chunk.Index, err)
				return
			}
			if status == DecodePartial {
				log.Printf("extraction decoded after repair analysis_id=%s chunk=%d", analysisID, chunk.Index)
			}
			payloads[i] = payload
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return AnalysisResult{}, err
		}
	}

	merged := MergeExtractions(payloads)
	if len(merged.Features) == 0 {
		return AnalysisResult{}, errors.New("llm output parse: no features extracted")
	}

	features := s.classifyFeatures(ctx, llmClient, merged.Features)

	meta := Meta{
		Provider:       s.Provider,
		Model:          s.Model,
		PromptVersion:  s.PromptVersion,
		RulesetVersion: s.rulesetVersion(),
		ChunkCount:     len(chunks),
	}
	return FormatResult(merged.PolicyInfo, features, meta), nil
}

// classifyFeatures runs the threshold tables first and sends only what they
// could not decide to the LLM fallback. A failed fallback degrades those
// features to UNCLEAR rather than failing the whole analysis.
func (s *Service) classifyFeatures(ctx context.Context, llmClient llm.Client, extracted []ExtractFeature) []Feature {
	engine := s.Rules
	if engine == nil {
		engine = rules.NewEngine("v1")
	}

	features := make([]Feature, len(extracted))
	var undecided []int
	for i, ef := range extracted {
		features[i] = Feature{
			ID:        ef.ID,
			Name:      ef.Name,
			Value:     ef.Value,
			Quote:     ef.Quote,
			Reference: ef.Reference,
		}
		decision := engine.Classify(rules.Input{ID: ef.ID, Value: ef.Value})
		if decision.Decided {
			features[i].Category = decision.Category
			features[i].ClassifiedBy = ClassifiedByCode
			features[i].Explanation = decision.Explanation
			continue
		}
		undecided = append(undecided, i)
	}

	if len(undecided) == 0 {
		return features
	}

	input := llm.ClassifyInput{PromptVersion: s.PromptVersion}
	for _, i := range undecided {
		input.Features = append(input.Features, llm.ClassifyFeature{
			ID:    features[i].ID,
			Name:  features[i].Name,
			Value: features[i].Value,
			Quote: features[i].Quote,
		})
	}

	decisions := map[string]Classification{}
	raw, err := llmClient.ClassifyFeatures(ctx, input)
	if err != nil {
		log.Printf("llm classify fallback failed, defaulting to UNCLEAR: %s", sanitizeError(err))
	} else if payload, status, decodeErr := DecodeClassification(raw); decodeErr != nil {
		log.Printf("llm classify decode failed, defaulting to UNCLEAR: %s", sanitizeError(decodeErr))
	} else {
		if status == DecodePartial {
			log.Printf("classification decoded after repair")
		}
		for _, c := range payload.Classifications {
			decisions[normalizeFeatureID(c.ID)] = c
		}
	}

	for _, i := range undecided {
		features[i].ClassifiedBy = ClassifiedByLLM
		if c, ok := decisions[features[i].ID]; ok && validCategory(c.Category) {
			features[i].Category = c.Category
			features[i].Explanation = c.Explanation
			continue
		}
		features[i].Category = CategoryUnclear
		features[i].Explanation = "This term could not be classified automatically; check the policy wording."
	}
	return features
}

func (s *Service) loadDocumentText(ctx context.Context, userID, documentID string) (string, error) {
	doc, err := s.DocRepo.GetByID(ctx, userID, documentID)
	if err != nil {
		return "", fmt.Errorf("document lookup id=%s: %w", documentID, err)
	}

	if doc.ExtractedTextKey != "" {
		return loadText(ctx, s.Store, doc.ExtractedTextKey)
	}

	text, err := extract.ExtractText(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return "", fmt.Errorf("document %s mime %s: %w", doc.ID, doc.MimeType, err)
	}
	extractedKey := doc.StorageKey + ".extracted.txt"
	if err := s.DocRepo.UpdateExtraction(ctx, doc.UserID, doc.ID, extractedKey, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("document %s: update extraction: %w", doc.ID, err)
	}
	return text, nil
}

func (s *Service) failAnalysis(ctx context.Context, analysisID, userID, documentID string, err error, startedAt *time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.UpdateStatusAndError(context.Background(), analysisID, StatusFailed, &code, &msg, nil, &completedAt); updateErr != nil {
		log.Printf("failAnalysis: update failed id=%s err=%v orig=%v", analysisID, updateErr, err)
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           userID,
		"document_id":       documentID,
		"analysis_id":       analysisID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

// recordCompleted persists a history row for a synchronous analysis. Failure
// to record never fails the request.
func (s *Service) recordCompleted(ctx context.Context, analysisID, userID, contentHash string, result map[string]any, startedAt, completedAt time.Time) {
	if s.Repo == nil {
		return
	}
	analysis := Analysis{
		ID:             analysisID,
		UserID:         userID,
		Status:         StatusCompleted,
		ContentHash:    contentHash,
		Provider:       s.Provider,
		Model:          s.Model,
		PromptVersion:  s.PromptVersion,
		RulesetVersion: s.rulesetVersion(),
		Result:         result,
		StartedAt:      &startedAt,
		CompletedAt:    &completedAt,
		CreatedAt:      startedAt,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		log.Printf("record analysis failed id=%s err=%v", analysisID, err)
	}
}

// analysisVersion is the cache-key version: any change to provider, model,
// prompt, or ruleset invalidates cached results.
func (s *Service) analysisVersion() string {
	return strings.Join([]string{s.Provider, s.Model, s.PromptVersion, s.rulesetVersion()}, "/")
}

func (s *Service) rulesetVersion() string {
	if s.Rules != nil {
		return s.Rules.Version()
	}
	return "v1"
}

func validCategory(category string) bool {
	switch category {
	case CategoryGreat, CategoryGood, CategoryRedFlag, CategoryUnclear:
		return true
	}
	return false
}

// markCached flags a warm hit both at the top level and inside _meta.
func markCached(result map[string]any) {
	result["_cached"] = true
	meta, ok := result["_meta"].(map[string]any)
	if !ok {
		meta = map[string]any{}
		result["_meta"] = meta
	}
	meta["cached"] = true
}

func resultToMap(result AnalysisResult) (map[string]any, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, ErrDocumentTooShort) {
		return ErrorCodeDocumentTooShort
	}
	if errors.Is(err, ErrNotAPolicyDocument) {
		return ErrorCodeInvalidDocument
	}
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		return ErrorCodeUpstreamAPI
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeLLMTimeout
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return ErrorCodeConfiguration
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "request timeout") {
		return ErrorCodeLLMTimeout
	}
	if strings.Contains(msg, "llm output parse") || strings.Contains(msg, "payload invalid") || strings.Contains(msg, "no features extracted") {
		return ErrorCodeResponseParse
	}
	if strings.Contains(msg, "document") || strings.Contains(msg, "storage") || strings.Contains(msg, "analysis result") || strings.Contains(msg, "set processing") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func loadText(ctx context.Context, store object.ObjectStore, key string) (string, error) {
	body, err := store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
