package dto

import "github.com/hocvui-edu/hocvui_api/model"

type StartGuestSessionRequest struct {
	GradeLevel string `json:"grade_level,omitempty" validate:"omitempty,oneof=1 2 3 4 5 6 7 8 9 10 11 12"`
}

func (s StartGuestSessionRequest) Validate() error {
	return GetValidator().Struct(s)
}

type RecordActivityRequest struct {
	LessonsViewed    []string `json:"lessons_viewed,omitempty"`
	QuizzesCompleted []string `json:"quizzes_completed,omitempty"`
	ChallengesTried  []string `json:"challenges_tried,omitempty"`
	SubjectsExplored []string `json:"subjects_explored,omitempty"`
	TimeSpentDelta   int      `json:"time_spent_delta,omitempty"`
	PointsDelta      int      `json:"points_delta,omitempty"`
}

func (r RecordActivityRequest) Validate() error {
	return GetValidator().Struct(r)
}

func (r RecordActivityRequest) ToUpdate() model.ProgressUpdate {
	return model.ProgressUpdate{
		LessonsViewed:    r.LessonsViewed,
		QuizzesCompleted: r.QuizzesCompleted,
		ChallengesTried:  r.ChallengesTried,
		SubjectsExplored: r.SubjectsExplored,
		TimeSpentDelta:   r.TimeSpentDelta,
		PointsDelta:      r.PointsDelta,
	}
}
