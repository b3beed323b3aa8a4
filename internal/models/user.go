package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ProficiencyBeginner     = "beginner"
	ProficiencyIntermediate = "intermediate"
	ProficiencyAdvanced     = "advanced"
)

type Skill struct {
	SkillName   string `json:"skill_name"`
	Proficiency string `json:"proficiency"`
}

// User is the read-only projection of an account that the session
// subsystem needs. Credentials live elsewhere.
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FullName          string    `json:"full_name"`
	AvatarURL         *string   `json:"avatar_url"`
	Skills            []Skill   `json:"skills"`
	SkillsToLearn     []string  `json:"skills_to_learn"`
	SessionsCompleted int       `json:"sessions_completed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Teaches reports whether skill is among the user's taught skills.
func (u *User) Teaches(skill string) bool {
	_, ok := u.FindSkill(skill)
	return ok
}

// TeachesProficiently is Teaches restricted to intermediate or advanced.
func (u *User) TeachesProficiently(skill string) bool {
	s, ok := u.FindSkill(skill)
	if !ok {
		return false
	}
	return s.Proficiency == ProficiencyIntermediate || s.Proficiency == ProficiencyAdvanced
}

func (u *User) FindSkill(name string) (Skill, bool) {
	for _, s := range u.Skills {
		if s.SkillName == name {
			return s, true
		}
	}
	return Skill{}, false
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:                u.ID,
		FullName:          u.FullName,
		AvatarURL:         u.AvatarURL,
		SessionsCompleted: u.SessionsCompleted,
	}
}

// UserSummary is what other users get to see in lists and notifications.
type UserSummary struct {
	ID                uuid.UUID `json:"id"`
	FullName          string    `json:"full_name"`
	AvatarURL         *string   `json:"avatar_url,omitempty"`
	SessionsCompleted int       `json:"sessions_completed"`
}
