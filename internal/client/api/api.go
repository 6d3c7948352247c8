// Package api exposes one typed service per backend resource family. Each
// call shapes its parameters, delegates to the transport with the caller's
// token and returns the decoded resource or the transport error unchanged.
package api

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/atinyakov/kongtze/internal/client/transport"
)

// Doer is the transport contract the services depend on.
type Doer interface {
	Get(ctx context.Context, path, token string, out any) error
	Post(ctx context.Context, path string, body any, token string, out any) error
	Put(ctx context.Context, path string, body any, token string, out any) error
	Delete(ctx context.Context, path, token string, out any) error
	Upload(ctx context.Context, path string, form *transport.FormData, token string, out any) error
}

// API groups the services.
type API struct {
	Auth            *AuthService
	Subjects        *SubjectService
	StudySessions   *StudySessionService
	Tests           *TestService
	Homework        *HomeworkService
	ClassNotes      *ClassNoteService
	Rewards         *RewardService
	PromptTemplates *PromptTemplateService
	Students        *StudentService
}

// New wires every service to d.
func New(d Doer) *API {
	return &API{
		Auth:            &AuthService{d: d},
		Subjects:        &SubjectService{d: d},
		StudySessions:   &StudySessionService{d: d},
		Tests:           &TestService{d: d},
		Homework:        &HomeworkService{d: d},
		ClassNotes:      &ClassNoteService{d: d},
		Rewards:         &RewardService{d: d},
		PromptTemplates: &PromptTemplateService{d: d},
		Students:        &StudentService{d: d},
	}
}

// Photo is an image to upload. Filename is sent as the multipart file name
// and picks the part's content type.
type Photo struct {
	Filename string
	Content  io.Reader
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func itoa(i int) string { return strconv.Itoa(i) }
