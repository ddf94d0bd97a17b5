package dto

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/avelio/skillforge-api/internal/models"
	"github.com/avelio/skillforge-api/internal/service"
)

// RecordAttemptRequest represents the payload for recording a practice attempt.
type RecordAttemptRequest struct {
	UserID    uint  `json:"user_id" validate:"required,gt=0"`
	ProblemID uint  `json:"problem_id" validate:"required,gt=0"`
	Passed    *bool `json:"passed" validate:"required"`
}

// SeedProblemRequest represents one catalog problem in a seed payload.
type SeedProblemRequest struct {
	Title       string          `json:"title" validate:"required"`
	Difficulty  string          `json:"difficulty" validate:"required,oneof=easy medium hard"`
	TargetAreas []string        `json:"target_areas" validate:"required,min=1,dive,required"`
	Statement   string          `json:"statement" validate:"required"`
	TestCases   json.RawMessage `json:"test_cases"`
}

// SeedCatalogRequest represents the payload for seeding the practice catalog.
type SeedCatalogRequest struct {
	Problems []SeedProblemRequest `json:"problems" validate:"required,min=1,dive"`
}

// PracticeProblemResponse represents a catalog problem to API consumers.
type PracticeProblemResponse struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Difficulty  string   `json:"difficulty"`
	TargetAreas []string `json:"target_areas"`
	Statement   string   `json:"statement"`
}

// PracticeSetResponse represents a generated practice set.
type PracticeSetResponse struct {
	Problems     []PracticeProblemResponse `json:"problems"`
	NoCandidates bool                      `json:"no_candidates"`
}

// WeakAreaResponse represents one ranked weak area.
type WeakAreaResponse struct {
	Tag         string  `json:"tag"`
	Weight      float64 `json:"weight"`
	Frequency   int64   `json:"frequency"`
	SeverityEMA float64 `json:"severity_ema"`
}

// NewPracticeProblemResponse builds a response DTO from a model.
func NewPracticeProblemResponse(problem models.PracticeProblem) PracticeProblemResponse {
	areas := problem.TargetAreas
	if areas == nil {
		areas = []string{}
	}
	return PracticeProblemResponse{
		ID:          problem.ID,
		Title:       problem.Title,
		Difficulty:  problem.Difficulty,
		TargetAreas: areas,
		Statement:   problem.Statement,
	}
}

// NewPracticeSetResponse converts a practice set into a DTO.
func NewPracticeSetResponse(set service.PracticeSet) PracticeSetResponse {
	problems := make([]PracticeProblemResponse, 0, len(set.Problems))
	for _, problem := range set.Problems {
		problems = append(problems, NewPracticeProblemResponse(problem))
	}
	return PracticeSetResponse{
		Problems:     problems,
		NoCandidates: set.NoCandidates,
	}
}

// NewWeakAreaResponses converts ranked weak areas into DTOs.
func NewWeakAreaResponses(ranked []service.RankedWeakArea) []WeakAreaResponse {
	responses := make([]WeakAreaResponse, 0, len(ranked))
	for _, area := range ranked {
		responses = append(responses, WeakAreaResponse{
			Tag:         area.Tag,
			Weight:      area.Weight,
			Frequency:   area.Frequency,
			SeverityEMA: area.SeverityEMA,
		})
	}
	return responses
}

// ToModel converts a seed entry into a catalog model.
func (r SeedProblemRequest) ToModel() models.PracticeProblem {
	problem := models.PracticeProblem{
		Title:       r.Title,
		Difficulty:  r.Difficulty,
		TargetAreas: r.TargetAreas,
		Statement:   r.Statement,
	}
	if len(r.TestCases) > 0 {
		problem.TestCases = datatypes.JSON(r.TestCases)
	}
	return problem
}
