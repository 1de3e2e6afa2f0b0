package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"shipdecl/internal/domain"
)

var (
	nullableString = map[string]any{"type": []any{"string", "null"}}
	nullableID     = map[string]any{"type": []any{"string", "number", "null"}}
	nullableValue  = map[string]any{"type": []any{"number", "string", "null"}}
	confidenceEnum = map[string]any{"enum": []any{"HIGH", "MEDIUM", "LOW", nil}}
	stringOrList   = map[string]any{
		"type":  []any{"array", "string", "null"},
		"items": map[string]any{"type": "string"},
	}
)

// responseSchemas describes the JSON object each prompt asks for. Fields are optional;
// the schemas only catch wrongly typed values.
var responseSchemas = map[domain.ExtractionMode]map[string]any{
	domain.ExtractionModeInbound: {
		"type": "object",
		"properties": map[string]any{
			"document_type":       nullableString,
			"tracking_or_awb":     nullableID,
			"ship_date":           nullableString,
			"mode":                nullableString,
			"flight_numbers":      stringOrList,
			"vessel_info":         nullableString,
			"container_number":    nullableString,
			"origin_country":      nullableString,
			"destination_country": nullableString,
			"incoterms":           nullableString,
			"currency":            nullableString,
			"total_value":         nullableValue,
			"carrier":             nullableString,
			"brand_codes":         stringOrList,
			"confidence":          confidenceEnum,
			"notes":               nullableString,
		},
	},
	domain.ExtractionModeOutboundAWB: {
		"type": "object",
		"properties": map[string]any{
			"awb_number":        nullableID,
			"flight_number":     nullableString,
			"flight_info":       nullableString,
			"flight_date":       nullableString,
			"destination":       nullableString,
			"description":       nullableString,
			"currency":          nullableString,
			"invoice_reference": nullableString,
			"confidence":        confidenceEnum,
			"notes":             nullableString,
		},
	},
	domain.ExtractionModeOutboundInvoice: {
		"type": "object",
		"properties": map[string]any{
			"invoice_number":      nullableID,
			"date":                nullableString,
			"currency":            nullableString,
			"total_value":         nullableValue,
			"destination_city":    nullableString,
			"destination_country": nullableString,
			"description":         nullableString,
			"confidence":          confidenceEnum,
			"notes":               nullableString,
		},
	},
}

// SchemaSet holds the compiled per-mode response schemas.
type SchemaSet struct {
	schemas map[domain.ExtractionMode]*jsonschema.Schema
}

// NewSchemaSet compiles the response schemas.
func NewSchemaSet() (*SchemaSet, error) {
	set := &SchemaSet{schemas: map[domain.ExtractionMode]*jsonschema.Schema{}}
	for mode, schemaMap := range responseSchemas {
		b, err := json.Marshal(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("marshal %s schema: %w", mode, err)
		}
		name := string(mode) + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add %s schema: %w", mode, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", mode, err)
		}
		set.schemas[mode] = schema
	}
	return set, nil
}

// Check validates a decoded response object and returns one warning per violation.
func (s *SchemaSet) Check(mode domain.ExtractionMode, data map[string]any) []string {
	if s == nil {
		return nil
	}
	schema, ok := s.schemas[mode]
	if !ok {
		return nil
	}
	err := schema.Validate(data)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{fmt.Sprintf("Response schema check failed: %v", err)}
	}
	var out []string
	collectLeaves(verr, &out)
	sort.Strings(out)
	return out
}

func collectLeaves(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, fmt.Sprintf("Unexpected value at %s: %s", loc, strings.TrimSpace(e.Message)))
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, out)
	}
}
