package handler

import (
	"bytes"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"shipdecl/internal/domain"
	"shipdecl/internal/ledger"
	"shipdecl/internal/validator"
)

// LedgerParseResponse lists the records read from one workbook.
type LedgerParseResponse struct {
	Filename string                              `json:"filename"`
	Records  []domain.LedgerRecord               `json:"records"`
	Issues   map[string][]domain.ValidationIssue `json:"issues"`
	// Fields holds a per-field status for every record, keyed by record ID.
	Fields map[string]map[string]*validator.FieldStatus `json:"fields"`
}

// ledgerFields are the record fields the ledger checks report on.
var ledgerFields = []string{"brands", "total_value", "country_splits"}

// LedgerHandler parses uploaded ledger workbooks.
type LedgerHandler struct {
	parser    *ledger.Parser
	validator *validator.Engine
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(p *ledger.Parser, v *validator.Engine) *LedgerHandler {
	return &LedgerHandler{parser: p, validator: v}
}

// Parse handles POST /api/v1/ledger/parse
func (h *LedgerHandler) Parse(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if err := ledger.ValidateFilename(header.Filename, ledger.FileKindExcel); err != nil {
		HandleError(c, err)
		return
	}
	data, err := ledger.ValidateExcel(file)
	if err != nil {
		HandleError(c, err)
		return
	}

	parsed, err := h.parser.Parse(bytes.NewReader(data), header.Filename)
	if err != nil {
		log.Printf("ledgerHandler.Parse: %s: %v", header.Filename, err)
		HandleError(c, err)
		return
	}

	resp := LedgerParseResponse{
		Filename: header.Filename,
		Records:  make([]domain.LedgerRecord, 0, len(parsed)),
		Issues:   map[string][]domain.ValidationIssue{},
		Fields:   map[string]map[string]*validator.FieldStatus{},
	}
	for _, key := range parsed.Keys() {
		rec := parsed[key]
		resp.Records = append(resp.Records, rec)
		issues := h.validator.ValidateLedger(&rec)
		if len(issues) > 0 {
			resp.Issues[rec.ID] = issues
		}
		resp.Fields[rec.ID] = validator.ComputeFieldStatuses(issues, ledgerFields...)
	}
	RespondOK(c, resp)
}
