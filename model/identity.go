package model

import (
	"encoding/json"
	"time"
)

const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Grade levels accepted at registration. The UI presents these as a fixed
// dropdown, so anything outside the list is a validation failure.
var GradeLevels = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}

func IsValidGradeLevel(grade string) bool {
	for _, g := range GradeLevels {
		if g == grade {
			return true
		}
	}
	return false
}

// Identity is an account record. Guest identities are never persisted; they
// exist only as a synthetic ID on a guest session. For non-guest identities
// at least one of Email/MobileNumber is set and each is unique across the
// store.
type Identity struct {
	ID             string `json:"id" gorm:"primaryKey"`
	FirstName      string `json:"first_name" gorm:"not null"`
	LastName       string `json:"last_name" gorm:"not null"`
	Email          string `json:"email,omitempty" gorm:"index"`
	MobileNumber   string `json:"mobile_number,omitempty" gorm:"index"`
	CredentialHash string `json:"-" gorm:"not null"`
	Role           string `json:"role" gorm:"not null"`
	GradeLevel     string `json:"grade_level,omitempty"`

	CreatedAt   time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"not null"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (i *Identity) DisplayName() string {
	return i.FirstName + " " + i.LastName
}

// IdentityDraft carries the fields needed to create a non-guest Identity.
// The secret arrives in the clear and is hashed by the store.
type IdentityDraft struct {
	FirstName    string
	LastName     string
	Email        string
	MobileNumber string
	Secret       string
	Role         string
	GradeLevel   string
}

// IdentityPatch is a partial account update. Nil fields are left untouched.
type IdentityPatch struct {
	Email        *string
	MobileNumber *string
	Secret       *string
	GradeLevel   *string
	LastLoginAt  *time.Time
}

// IdentityProgress is the durable progress record attached to an Identity,
// created when a guest session upgrades. The set fields are kept as a
// historical record of what the guest explored; time is stored in whole
// minutes for display.
type IdentityProgress struct {
	ID               string          `json:"id" gorm:"primaryKey"`
	IdentityID       string          `json:"identity_id" gorm:"not null;index"`
	Points           int             `json:"points" gorm:"not null"`
	TimeSpentMinutes int             `json:"time_spent_minutes" gorm:"not null"`
	LessonsViewed    json.RawMessage `json:"lessons_viewed" gorm:"not null"`
	QuizzesCompleted json.RawMessage `json:"quizzes_completed" gorm:"not null"`
	ChallengesTried  json.RawMessage `json:"challenges_tried" gorm:"not null"`
	SubjectsExplored json.RawMessage `json:"subjects_explored" gorm:"not null"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}
