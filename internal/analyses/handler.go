package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"policy-backend/internal/documents"
	"policy-backend/internal/llm"
	"policy-backend/internal/shared/server/middleware"
	"policy-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	DocRepo documents.Repo
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, docRepo documents.Repo) *Handler {
	return &Handler{Svc: svc, DocRepo: docRepo}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze-policy", h.analyzePolicy)
	rg.POST("/documents/:id/analyze", h.startAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

type analyzePolicyRequest struct {
	PolicyText string `json:"policyText"`
}

func (h *Handler) analyzePolicy(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req analyzePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.PolicyText) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "policyText is required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	result, err := h.Svc.AnalyzeText(ctx, userID, req.PolicyText)
	if err != nil {
		h.respondAnalyzeError(c, err)
		return
	}

	respond.JSON(c, http.StatusOK, result)
}

func (h *Handler) respondAnalyzeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDocumentTooShort):
		respond.Error(c, http.StatusBadRequest, "document_too_short",
			"The document is too short to analyze. Paste the full policy wording.", nil)
	case errors.Is(err, ErrNotAPolicyDocument):
		respond.Error(c, http.StatusBadRequest, "invalid_document",
			"This does not look like a health-insurance policy document.", nil)
	default:
		code := classifyFailure(err)
		message := "Analysis failed. Please try again."
		if code == ErrorCodeUpstreamAPI || code == ErrorCodeLLMTimeout {
			message = "The analysis service is temporarily unavailable. Please try again shortly."
		}
		var upstream *llm.UpstreamError
		if errors.As(err, &upstream) && upstream.StatusCode == http.StatusUnauthorized {
			code = ErrorCodeConfiguration
		}
		respond.ErrorWithDebug(c, http.StatusInternalServerError,
			strings.ToLower(code), message, nil, sanitizeError(err))
	}
}

func (h *Handler) startAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	doc, err := h.DocRepo.GetByID(c.Request.Context(), userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Create(ctx, doc.ID, userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		return
	}

	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"id":     analysis.ID,
		"status": analysis.Status,
	}
	if analysis.Status == StatusCompleted && analysis.Result != nil {
		resp["result"] = analysis.Result
	}
	if analysis.Status == StatusFailed {
		if analysis.ErrorCode != nil {
			resp["errorCode"] = *analysis.ErrorCode
		}
		if analysis.ErrorMessage != nil {
			resp["errorMessage"] = *analysis.ErrorMessage
		}
	}

	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		item := gin.H{
			"analysisId": a.ID,
			"status":     a.Status,
			"createdAt":  a.CreatedAt,
		}
		if a.DocumentID != "" {
			item["documentId"] = a.DocumentID
		}
		if a.Status == StatusCompleted && a.Result != nil {
			if summary, ok := a.Result["summary"]; ok {
				item["summary"] = summary
			}
			if info, ok := a.Result["policyInfo"]; ok {
				item["policyInfo"] = info
			}
		}
		resp = append(resp, item)
	}

	respond.JSON(c, http.StatusOK, resp)
}
