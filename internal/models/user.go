package models

import "time"

// Declared skill levels. They steer the practice set difficulty mix.
const (
	SkillLevelBeginner     = "beginner"
	SkillLevelIntermediate = "intermediate"
	SkillLevelAdvanced     = "advanced"
)

// User is a learner account. Submissions, weak areas and growth scores all
// hang off its ID.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Email      string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	SkillLevel string    `gorm:"size:16;not null;default:beginner" json:"skill_level"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NormalizedSkillLevel returns the declared skill level, defaulting unknown
// or empty values to beginner.
func (u User) NormalizedSkillLevel() string {
	switch u.SkillLevel {
	case SkillLevelIntermediate, SkillLevelAdvanced:
		return u.SkillLevel
	default:
		return SkillLevelBeginner
	}
}
