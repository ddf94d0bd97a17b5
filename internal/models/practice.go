package models

import (
	"time"

	"gorm.io/datatypes"
)

// Practice problem difficulties.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// PracticeProblem is read-only catalog content supplied by the problem bank.
// The selector only reads and ranks it.
type PracticeProblem struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Difficulty  string         `gorm:"size:16;not null;index" json:"difficulty"`
	TargetAreas []string       `gorm:"serializer:json" json:"target_areas"`
	Statement   string         `gorm:"type:text" json:"statement"`
	TestCases   datatypes.JSON `json:"test_cases"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Targets reports whether the problem exercises the given weak-area tag.
func (p PracticeProblem) Targets(tag string) bool {
	for _, area := range p.TargetAreas {
		if area == tag {
			return true
		}
	}
	return false
}
