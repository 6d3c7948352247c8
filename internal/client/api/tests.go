package api

import (
	"context"
	"net/url"

	"github.com/atinyakov/kongtze/internal/models"
)

// TestService covers /tests. Question generation and grading run on the
// backend; the client only transports them.
type TestService struct{ d Doer }

func (s *TestService) Create(ctx context.Context, in models.TestCreate, token string) (*models.TestWithQuestions, error) {
	var out models.TestWithQuestions
	if err := s.d.Post(ctx, "/tests", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the caller's tests, optionally restricted to one subject.
func (s *TestService) List(ctx context.Context, subjectID *int, token string) ([]models.Test, error) {
	q := url.Values{}
	if subjectID != nil {
		q.Set("subject_id", itoa(*subjectID))
	}
	var out []models.Test
	if err := s.d.Get(ctx, withQuery("/tests", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *TestService) Get(ctx context.Context, id int, token string) (*models.TestWithQuestions, error) {
	var out models.TestWithQuestions
	if err := s.d.Get(ctx, "/tests/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TestService) Submit(ctx context.Context, in models.TestSubmission, token string) (*models.TestResult, error) {
	var out models.TestResult
	if err := s.d.Post(ctx, "/tests/submit", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Result returns one graded result with its answer key.
func (s *TestService) Result(ctx context.Context, resultID int, token string) (*models.TestResultWithReview, error) {
	var out models.TestResultWithReview
	if err := s.d.Get(ctx, "/tests/results/"+itoa(resultID), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *TestService) Results(ctx context.Context, token string) ([]models.TestResult, error) {
	var out []models.TestResult
	if err := s.d.Get(ctx, "/tests/results", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}
