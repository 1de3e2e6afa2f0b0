package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"shipdecl/internal/classifier"
)

// maxClassifyBatch bounds the descriptions accepted in one request.
const maxClassifyBatch = 500

// ClassifyRequest is the body of POST /api/v1/classify. Either field may be used.
type ClassifyRequest struct {
	Description  string   `json:"description"`
	Descriptions []string `json:"descriptions"`
}

// ClassificationResponse is one classified description.
type ClassificationResponse struct {
	Description  string                `json:"description"`
	Category     string                `json:"category"`
	Categories   []classifier.Category `json:"categories"`
	Confidence   float64               `json:"confidence"`
	Reasoning    string                `json:"reasoning"`
	MatchedRules []string              `json:"matched_rules"`
}

// ClassifyHandler exposes the product category classifier.
type ClassifyHandler struct {
	classifier *classifier.Classifier
}

// NewClassifyHandler creates a new ClassifyHandler.
func NewClassifyHandler(c *classifier.Classifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: c}
}

// Classify handles POST /api/v1/classify
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}

	descriptions := req.Descriptions
	if strings.TrimSpace(req.Description) != "" {
		descriptions = append([]string{req.Description}, descriptions...)
	}
	if len(descriptions) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_DESCRIPTION", "description or descriptions is required")
		return
	}
	if len(descriptions) > maxClassifyBatch {
		RespondError(c, http.StatusBadRequest, "TOO_MANY_DESCRIPTIONS", "at most 500 descriptions per request")
		return
	}

	out := make([]ClassificationResponse, 0, len(descriptions))
	for _, d := range descriptions {
		res := h.classifier.Classify(d)
		rules := res.MatchedRules
		if rules == nil {
			rules = []string{}
		}
		out = append(out, ClassificationResponse{
			Description:  d,
			Category:     res.String(),
			Categories:   res.Categories,
			Confidence:   res.Confidence,
			Reasoning:    res.Reasoning,
			MatchedRules: rules,
		})
	}

	if len(out) == 1 && len(req.Descriptions) == 0 {
		RespondOK(c, out[0])
		return
	}
	RespondOK(c, out)
}
