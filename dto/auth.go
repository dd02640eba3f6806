package dto

import (
	"encoding/json"
	"time"

	"github.com/hocvui-edu/hocvui_api/model"
)

// ==================== AUTHENTICATION REQUEST DTOs ====================

type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required" example:"user@example.com"`
	Password   string `json:"password" validate:"required" example:"SecurePass123"`
}

func (l LoginRequest) Validate() error {
	return GetValidator().Struct(l)
}

// UpgradeRequest converts the active guest session into a full account. At
// least one of email/mobile is required; that cross-field rule lives in the
// upgrade transaction, not in tags.
type UpgradeRequest struct {
	FirstName       string `json:"first_name" validate:"required" example:"An"`
	LastName        string `json:"last_name" validate:"required" example:"Nguyen"`
	Email           string `json:"email,omitempty" example:"an.nguyen@example.com"`
	MobileNumber    string `json:"mobile_number,omitempty" example:"+84912345678"`
	Password        string `json:"password" validate:"required" example:"SecurePass123"`
	ConfirmPassword string `json:"confirm_password" validate:"required" example:"SecurePass123"`
	GradeLevel      string `json:"grade_level" validate:"required" example:"10"`
}

func (u UpgradeRequest) Validate() error {
	return GetValidator().Struct(u)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

func (f ForgotPasswordRequest) Validate() error {
	return GetValidator().Struct(f)
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email" example:"user@example.com"`
	Code        string `json:"code" validate:"required,len=6,numeric" example:"123456"`
	NewPassword string `json:"new_password" validate:"required,strong_password" example:"NewPass123"`
}

func (r ResetPasswordRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ==================== AUTHENTICATION RESPONSE DTOs ====================

type SessionResponse struct {
	Token     string               `json:"token" example:"b0f6f3f0-..."`
	State     model.SessionState   `json:"state" example:"guest"`
	Identity  *IdentityInfo        `json:"identity,omitempty"`
	Progress  *model.GuestProgress `json:"progress,omitempty"`
	ExpiresAt *time.Time           `json:"expires_at,omitempty"`
}

type LoginResponse struct {
	AccessToken string          `json:"access_token" example:"eyJhbGciOiJIUzI1NiIs..."`
	ExpiresIn   int64           `json:"expires_in" example:"86400"`
	Session     SessionResponse `json:"session"`
}

type UpgradeResponse struct {
	AccessToken string           `json:"access_token" example:"eyJhbGciOiJIUzI1NiIs..."`
	ExpiresIn   int64            `json:"expires_in" example:"86400"`
	Identity    IdentityInfo     `json:"identity"`
	Progress    IdentityProgress `json:"progress"`
	Session     SessionResponse  `json:"session"`
}

type MeResponse struct {
	Identity IdentityInfo     `json:"identity"`
	Progress IdentityProgress `json:"progress"`
}

type IdentityInfo struct {
	ID          string     `json:"id" example:"0190b19a-..."`
	FirstName   string     `json:"first_name" example:"An"`
	LastName    string     `json:"last_name" example:"Nguyen"`
	DisplayName string     `json:"display_name" example:"An Nguyen"`
	Email       string     `json:"email,omitempty" example:"an.nguyen@example.com"`
	Mobile      string     `json:"mobile_number,omitempty" example:"+84912345678"`
	Role        string     `json:"role" example:"user"`
	GradeLevel  string     `json:"grade_level,omitempty" example:"10"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type IdentityProgress struct {
	Points           int      `json:"points" example:"120"`
	TimeSpentMinutes int      `json:"time_spent_minutes" example:"14"`
	LessonsViewed    []string `json:"lessons_viewed"`
	QuizzesCompleted []string `json:"quizzes_completed"`
	ChallengesTried  []string `json:"challenges_tried"`
	SubjectsExplored []string `json:"subjects_explored"`
}

// NewSessionResponse snapshots a session for the wire. The identity is only
// attached for authenticated sessions.
func NewSessionResponse(session *model.Session, identity *model.Identity) SessionResponse {
	resp := SessionResponse{
		Token:     session.Token,
		State:     session.State,
		Progress:  session.GuestProgress,
		ExpiresAt: session.ExpiresAt,
	}
	if session.IsAuthenticated() {
		resp.Identity = NewIdentityInfo(identity)
	}
	return resp
}

// NewIdentityProgress unpacks the stored progress row into its wire shape.
func NewIdentityProgress(progress *model.IdentityProgress) IdentityProgress {
	if progress == nil {
		return IdentityProgress{}
	}
	return IdentityProgress{
		Points:           progress.Points,
		TimeSpentMinutes: progress.TimeSpentMinutes,
		LessonsViewed:    unmarshalIDs(progress.LessonsViewed),
		QuizzesCompleted: unmarshalIDs(progress.QuizzesCompleted),
		ChallengesTried:  unmarshalIDs(progress.ChallengesTried),
		SubjectsExplored: unmarshalIDs(progress.SubjectsExplored),
	}
}

func unmarshalIDs(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return []string{}
	}
	return ids
}

func NewIdentityInfo(identity *model.Identity) *IdentityInfo {
	if identity == nil {
		return nil
	}
	return &IdentityInfo{
		ID:          identity.ID,
		FirstName:   identity.FirstName,
		LastName:    identity.LastName,
		DisplayName: identity.DisplayName(),
		Email:       identity.Email,
		Mobile:      identity.MobileNumber,
		Role:        identity.Role,
		GradeLevel:  identity.GradeLevel,
		CreatedAt:   identity.CreatedAt,
		LastLoginAt: identity.LastLoginAt,
	}
}
