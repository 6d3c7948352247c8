package api

import (
	"context"

	"github.com/atinyakov/kongtze/internal/models"
)

// SubjectService covers /subjects.
type SubjectService struct{ d Doer }

func (s *SubjectService) List(ctx context.Context, token string) ([]models.Subject, error) {
	var out []models.Subject
	if err := s.d.Get(ctx, "/subjects", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SubjectService) Get(ctx context.Context, id int, token string) (*models.Subject, error) {
	var out models.Subject
	if err := s.d.Get(ctx, "/subjects/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StudySessionService covers /study-sessions, the weekly calendar.
type StudySessionService struct{ d Doer }

func (s *StudySessionService) List(ctx context.Context, token string) ([]models.StudySession, error) {
	var out []models.StudySession
	if err := s.d.Get(ctx, "/study-sessions", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *StudySessionService) Get(ctx context.Context, id int, token string) (*models.StudySession, error) {
	var out models.StudySession
	if err := s.d.Get(ctx, "/study-sessions/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StudySessionService) Create(ctx context.Context, in models.StudySessionCreate, token string) (*models.StudySession, error) {
	var out models.StudySession
	if err := s.d.Post(ctx, "/study-sessions", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StudySessionService) Update(ctx context.Context, id int, in models.StudySessionUpdate, token string) (*models.StudySession, error) {
	var out models.StudySession
	if err := s.d.Put(ctx, "/study-sessions/"+itoa(id), in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *StudySessionService) Delete(ctx context.Context, id int, token string) error {
	return s.d.Delete(ctx, "/study-sessions/"+itoa(id), token, nil)
}

// GenerateSchedule asks the backend to propose a weekly schedule. Nothing is
// created until the proposal is applied.
func (s *StudySessionService) GenerateSchedule(ctx context.Context, prefs models.SchedulePreferences, token string) (*models.GeneratedSchedule, error) {
	var out models.GeneratedSchedule
	if err := s.d.Post(ctx, "/study-sessions/generate-schedule", prefs, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
