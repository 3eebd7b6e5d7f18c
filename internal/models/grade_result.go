package models

// GradeResult is the structured outcome of grading one artifact.
type GradeResult struct {
	Category           string             `json:"category"`
	Breakdown          map[string]float64 `json:"breakdown"`
	Score              float64            `json:"score"`
	Strengths          []string           `json:"strengths"`
	Weaknesses         []string           `json:"weaknesses"`
	ActionableFeedback string             `json:"actionable_feedback"`
	Recommendations    []Recommendation   `json:"recommendations"`
}

// Recommendation points the submitter to a follow-up resource.
type Recommendation struct {
	Topic         string `json:"topic"`
	Advice        string `json:"advice"`
	ResourceTitle string `json:"resource_title"`
	ResourceURL   string `json:"resource_url"`
}
