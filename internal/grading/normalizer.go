package grading

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/artdirector-api/internal/models"
)

//go:embed schema/grade_result.schema.json
var gradeResultSchema []byte

const gradeResultSchemaURL = "mem://grade_result.schema.json"

// Normalizer turns raw provider text into a validated GradeResult.
type Normalizer struct {
	schema    *jsonschema.Schema
	sanitizer *bluemonday.Policy
}

// NewNormalizer compiles the grade result contract.
func NewNormalizer() (*Normalizer, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(gradeResultSchemaURL, bytes.NewReader(gradeResultSchema)); err != nil {
		return nil, fmt.Errorf("load grade result schema: %w", err)
	}

	schema, err := compiler.Compile(gradeResultSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile grade result schema: %w", err)
	}

	return &Normalizer{schema: schema, sanitizer: bluemonday.StrictPolicy()}, nil
}

// GradeResultSchema exposes the raw contract for callers that validate stored payloads.
func GradeResultSchema() []byte {
	return gradeResultSchema
}

// Normalize strips code fences, validates against the contract and decodes the payload.
// No repair is attempted beyond fence stripping.
func (n *Normalizer) Normalize(raw string) (models.GradeResult, error) {
	text := StripCodeFences(raw)
	if text == "" {
		return models.GradeResult{}, fmt.Errorf("%w: empty response", ErrMalformedGradeResponse)
	}

	var document interface{}
	if err := json.Unmarshal([]byte(text), &document); err != nil {
		return models.GradeResult{}, fmt.Errorf("%w: %w", ErrMalformedGradeResponse, err)
	}

	if err := n.schema.Validate(document); err != nil {
		return models.GradeResult{}, fmt.Errorf("%w: %w", ErrMalformedGradeResponse, err)
	}

	var result models.GradeResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return models.GradeResult{}, fmt.Errorf("%w: %w", ErrMalformedGradeResponse, err)
	}

	n.sanitize(&result)
	return result, nil
}

// StripCodeFences removes a leading ``` (optionally labelled) and a trailing ``` fence.
func StripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = text[3:]
		if newline := strings.IndexByte(text, '\n'); newline >= 0 && !strings.ContainsAny(text[:newline], "{[") {
			text = text[newline+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func (n *Normalizer) sanitize(result *models.GradeResult) {
	// Markup is stripped but the text is stored unescaped; clients escape on render.
	clean := func(value string) string {
		return strings.TrimSpace(html.UnescapeString(n.sanitizer.Sanitize(value)))
	}

	result.Category = clean(result.Category)
	result.ActionableFeedback = clean(result.ActionableFeedback)
	for i := range result.Strengths {
		result.Strengths[i] = clean(result.Strengths[i])
	}
	for i := range result.Weaknesses {
		result.Weaknesses[i] = clean(result.Weaknesses[i])
	}
	for i := range result.Recommendations {
		rec := &result.Recommendations[i]
		rec.Topic = clean(rec.Topic)
		rec.Advice = clean(rec.Advice)
		rec.ResourceTitle = clean(rec.ResourceTitle)
		rec.ResourceURL = safeURL(rec.ResourceURL)
	}
	if result.Strengths == nil {
		result.Strengths = []string{}
	}
	if result.Weaknesses == nil {
		result.Weaknesses = []string{}
	}
}

func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}
