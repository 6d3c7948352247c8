package api

import (
	"context"
	"net/url"

	"github.com/atinyakov/kongtze/internal/models"
)

// PromptTemplateService covers /prompt-templates. Templates are opaque to
// the client; rendering happens only through Preview.
type PromptTemplateService struct{ d Doer }

// PromptTemplateFilter narrows List. The backend lists only active
// templates unless IncludeInactive is set.
type PromptTemplateFilter struct {
	Type            string
	IncludeInactive bool
}

func (s *PromptTemplateService) List(ctx context.Context, f PromptTemplateFilter, token string) ([]models.PromptTemplate, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("template_type", f.Type)
	}
	if f.IncludeInactive {
		q.Set("active_only", "false")
	}
	var out []models.PromptTemplate
	if err := s.d.Get(ctx, withQuery("/prompt-templates", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PromptTemplateService) Get(ctx context.Context, id int, token string) (*models.PromptTemplate, error) {
	var out models.PromptTemplate
	if err := s.d.Get(ctx, "/prompt-templates/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PromptTemplateService) Create(ctx context.Context, in models.PromptTemplateCreate, token string) (*models.PromptTemplate, error) {
	var out models.PromptTemplate
	if err := s.d.Post(ctx, "/prompt-templates", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PromptTemplateService) Update(ctx context.Context, id int, in models.PromptTemplateUpdate, token string) (*models.PromptTemplate, error) {
	var out models.PromptTemplate
	if err := s.d.Put(ctx, "/prompt-templates/"+itoa(id), in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PromptTemplateService) Delete(ctx context.Context, id int, token string) error {
	return s.d.Delete(ctx, "/prompt-templates/"+itoa(id), token, nil)
}

// Preview renders a template server side with the given variables.
func (s *PromptTemplateService) Preview(ctx context.Context, id int, variables map[string]string, token string) (*models.PromptPreview, error) {
	if variables == nil {
		variables = map[string]string{}
	}
	var out models.PromptPreview
	if err := s.d.Post(ctx, "/prompt-templates/"+itoa(id)+"/preview", variables, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StudentService covers /students.
type StudentService struct{ d Doer }

// Profile returns a student's learning profile.
func (s *StudentService) Profile(ctx context.Context, studentID int, token string) (*models.StudentProfile, error) {
	var out models.StudentProfile
	if err := s.d.Get(ctx, "/students/"+itoa(studentID)+"/profile", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
