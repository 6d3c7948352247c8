package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/atinyakov/kongtze/internal/client/transport"
	"github.com/atinyakov/kongtze/internal/models"
)

func photoForm(subjectID int, title string, photo Photo) *transport.FormData {
	return transport.NewFormData().
		Add("subject_id", itoa(subjectID)).
		Add("title", title).
		AddFile("photo", photo.Filename, photo.Content)
}

// HomeworkService covers /homework. OCR runs on the backend after upload.
type HomeworkService struct{ d Doer }

// HomeworkFilter narrows List. Nil fields are not sent.
type HomeworkFilter struct {
	SubjectID *int
	Reviewed  *bool
}

func (s *HomeworkService) Upload(ctx context.Context, subjectID int, title string, photo Photo, token string) (*models.Homework, error) {
	var out models.Homework
	if err := s.d.Upload(ctx, "/homework", photoForm(subjectID, title, photo), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HomeworkService) List(ctx context.Context, f HomeworkFilter, token string) ([]models.Homework, error) {
	q := url.Values{}
	if f.SubjectID != nil {
		q.Set("subject_id", itoa(*f.SubjectID))
	}
	if f.Reviewed != nil {
		q.Set("reviewed", strconv.FormatBool(*f.Reviewed))
	}
	var out []models.Homework
	if err := s.d.Get(ctx, withQuery("/homework", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *HomeworkService) Get(ctx context.Context, id int, token string) (*models.Homework, error) {
	var out models.Homework
	if err := s.d.Get(ctx, "/homework/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HomeworkService) Update(ctx context.Context, id int, in models.HomeworkUpdate, token string) (*models.Homework, error) {
	var out models.Homework
	if err := s.d.Put(ctx, "/homework/"+itoa(id), in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HomeworkService) Delete(ctx context.Context, id int, token string) error {
	return s.d.Delete(ctx, "/homework/"+itoa(id), token, nil)
}

// ClassNoteService covers /class-notes. Topic extraction runs on the backend.
type ClassNoteService struct{ d Doer }

// Upload returns the note together with the topics extracted from it.
func (s *ClassNoteService) Upload(ctx context.Context, subjectID int, title string, photo Photo, token string) (*models.ClassNoteWithTopics, error) {
	var out models.ClassNoteWithTopics
	if err := s.d.Upload(ctx, "/class-notes", photoForm(subjectID, title, photo), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClassNoteService) List(ctx context.Context, subjectID *int, token string) ([]models.ClassNote, error) {
	q := url.Values{}
	if subjectID != nil {
		q.Set("subject_id", itoa(*subjectID))
	}
	var out []models.ClassNote
	if err := s.d.Get(ctx, withQuery("/class-notes", q), token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ClassNoteService) Get(ctx context.Context, id int, token string) (*models.ClassNoteWithTopics, error) {
	var out models.ClassNoteWithTopics
	if err := s.d.Get(ctx, "/class-notes/"+itoa(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClassNoteService) Update(ctx context.Context, id int, in models.ClassNoteUpdate, token string) (*models.ClassNote, error) {
	var out models.ClassNote
	if err := s.d.Put(ctx, "/class-notes/"+itoa(id), in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ClassNoteService) Delete(ctx context.Context, id int, token string) error {
	return s.d.Delete(ctx, "/class-notes/"+itoa(id), token, nil)
}
