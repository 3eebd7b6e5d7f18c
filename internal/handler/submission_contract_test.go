package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artdirector-api/internal/grading"
	"github.com/noah-isme/artdirector-api/internal/models"
)

func TestGradedSubmissionMatchesGradeContract(t *testing.T) {
	ta := setupTestApp(t)
	created := ta.upload(t, student, "Dashboard mockup")

	result := models.GradeResult{
		Category:           "UI Design",
		Breakdown:          map[string]float64{"composition": 80, "typography": 74},
		Score:              78,
		Strengths:          []string{"Clear hierarchy"},
		Weaknesses:         []string{"Low contrast labels"},
		ActionableFeedback: "Raise label contrast to AA.",
		Recommendations: []models.Recommendation{
			{Topic: "Accessibility", Advice: "Check contrast ratios", ResourceURL: "https://www.w3.org/WAI/"},
		},
	}
	applied, err := grading.NewLifecycle(ta.repo, nil, zerolog.Nop()).Complete(context.Background(), created.ID, result)
	require.NoError(t, err)
	require.True(t, applied)

	resp, payload := ta.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/submissions/"+created.ID.String(), nil), &student)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Status        string          `json:"status"`
		RubricVersion string          `json:"rubric_version"`
		Grade         json.RawMessage `json:"grade"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &body))
	require.Equal(t, models.SubmissionStatusGraded, body.Status)
	require.Equal(t, grading.RubricVersion, body.RubricVersion)

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	require.NoError(t, compiler.AddResource("mem://contract.json", bytes.NewReader(grading.GradeResultSchema())))
	schema, err := compiler.Compile("mem://contract.json")
	require.NoError(t, err)

	var grade interface{}
	require.NoError(t, json.Unmarshal(body.Grade, &grade))
	require.NoError(t, schema.Validate(grade))
}
