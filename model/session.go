package model

import "time"

type SessionState string

const (
	SessionAnonymous     SessionState = "anonymous"
	SessionGuest         SessionState = "guest"
	SessionAuthenticated SessionState = "authenticated"
)

// Session is the single active session for one client slot (device). State
// only moves forward: anonymous -> guest -> authenticated; there is no path
// back from authenticated to guest.
type Session struct {
	Token         string         `json:"token"`
	Slot          string         `json:"slot"`
	IdentityID    string         `json:"identity_id,omitempty"`
	State         SessionState   `json:"state"`
	GuestProgress *GuestProgress `json:"guest_progress,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	ExpiresAt     *time.Time     `json:"expires_at,omitempty"`
}

func (s *Session) IsGuest() bool         { return s != nil && s.State == SessionGuest }
func (s *Session) IsAuthenticated() bool { return s != nil && s.State == SessionAuthenticated }

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the manager's owned value.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.GuestProgress = s.GuestProgress.Clone()
	return &out
}

// GuestProgress accumulates activity for one guest session. Set fields only
// grow, counters never decrease; the whole value is destroyed on session
// termination or moved onto the new Identity on upgrade.
type GuestProgress struct {
	LessonsViewed    []string `json:"lessons_viewed"`
	QuizzesCompleted []string `json:"quizzes_completed"`
	ChallengesTried  []string `json:"challenges_tried"`
	SubjectsExplored []string `json:"subjects_explored"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
	PointsEarned     int      `json:"points_earned"`
}

func NewGuestProgress() *GuestProgress {
	return &GuestProgress{
		LessonsViewed:    []string{},
		QuizzesCompleted: []string{},
		ChallengesTried:  []string{},
		SubjectsExplored: []string{},
	}
}

func (p *GuestProgress) Clone() *GuestProgress {
	if p == nil {
		return nil
	}
	out := *p
	out.LessonsViewed = append([]string(nil), p.LessonsViewed...)
	out.QuizzesCompleted = append([]string(nil), p.QuizzesCompleted...)
	out.ChallengesTried = append([]string(nil), p.ChallengesTried...)
	out.SubjectsExplored = append([]string(nil), p.SubjectsExplored...)
	return &out
}

// ProgressUpdate is a partial guest-activity update. Empty set slices and
// zero deltas leave the corresponding field unchanged.
type ProgressUpdate struct {
	LessonsViewed    []string `json:"lessons_viewed,omitempty"`
	QuizzesCompleted []string `json:"quizzes_completed,omitempty"`
	ChallengesTried  []string `json:"challenges_tried,omitempty"`
	SubjectsExplored []string `json:"subjects_explored,omitempty"`
	TimeSpentDelta   int      `json:"time_spent_delta,omitempty"`
	PointsDelta      int      `json:"points_delta,omitempty"`
}

// GuestHints are optional profile hints supplied when a guest session starts.
type GuestHints struct {
	GradeLevel string `json:"grade_level,omitempty"`
}
