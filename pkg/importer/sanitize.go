package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dukex/enviroflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// MaxPayloadBytes caps an import file before it is parsed.
const MaxPayloadBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ImportedWorkflow is a sanitized import payload. It is safe, not necessarily structurally valid.
type ImportedWorkflow struct {
	Name        string         `json:"name"                   validate:"required,max=200"`
	Description string         `json:"description,omitempty"`
	GrowthStage string         `json:"growth_stage,omitempty"`
	Nodes       []*models.Node `json:"nodes"                  validate:"max=100,dive,required"`
	Edges       []*models.Edge `json:"edges"                  validate:"max=200,dive,required"`
}

// Graph returns the imported nodes and edges.
func (w *ImportedWorkflow) Graph() models.WorkflowGraph {
	return models.WorkflowGraph{Nodes: w.Nodes, Edges: w.Edges}
}

// Sanitize validates and cleans an untrusted workflow file. Either a fully sanitized workflow
// or an *ImportError is returned.
func Sanitize(raw []byte) (*ImportedWorkflow, error) {
	if len(raw) > MaxPayloadBytes {
		return nil, newImportError(CodePayloadTooLarge, nil,
			fmt.Sprintf("payload is %d bytes; the limit is %d", len(raw), MaxPayloadBytes))
	}

	doc, err := decodeObject(raw)
	if err != nil {
		return nil, newImportError(CodeMalformedJSON, err)
	}

	violations, err := validateSchema(raw)
	if err != nil {
		return nil, newImportError(CodeMalformedJSON, err)
	}

	if len(violations) > 0 {
		return nil, newImportError(CodeSchemaViolation, nil, violations...)
	}

	sanitizeDocument(doc)

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode sanitized payload: %w", err)
	}

	var workflow ImportedWorkflow

	err = json.Unmarshal(cleaned, &workflow)
	if err != nil {
		return nil, newImportError(CodeSchemaViolation, err, err.Error())
	}

	violations = structViolations(&workflow)
	violations = append(violations, duplicateIDs(&workflow)...)

	if len(violations) > 0 {
		return nil, newImportError(CodeSchemaViolation, nil, violations...)
	}

	if workflow.Edges == nil {
		workflow.Edges = make([]*models.Edge, 0)
	}

	return &workflow, nil
}

// decodeObject parses raw as exactly one JSON object, keeping numbers verbatim.
func decodeObject(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any

	err := decoder.Decode(&value)
	if err != nil {
		return nil, err
	}

	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after the top-level value")
	}

	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be an object, got %T", value)
	}

	return doc, nil
}

func structViolations(workflow *ImportedWorkflow) []string {
	err := validate.Struct(workflow)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	violations := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		violations = append(violations, fmt.Sprintf("%s: failed %s", fieldErr.Namespace(), fieldErr.Tag()))
	}

	return violations
}

func duplicateIDs(workflow *ImportedWorkflow) []string {
	var violations []string

	nodeIDs := make(map[string]bool, len(workflow.Nodes))
	for _, node := range workflow.Nodes {
		if nodeIDs[node.ID] {
			violations = append(violations, fmt.Sprintf("nodes: duplicate node id %q", node.ID))
		}

		nodeIDs[node.ID] = true
	}

	edgeIDs := make(map[string]bool, len(workflow.Edges))
	for _, edge := range workflow.Edges {
		if edgeIDs[edge.ID] {
			violations = append(violations, fmt.Sprintf("edges: duplicate edge id %q", edge.ID))
		}

		edgeIDs[edge.ID] = true
	}

	return violations
}
