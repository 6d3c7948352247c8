package api

import (
	"context"

	"github.com/atinyakov/kongtze/internal/models"
)

// AuthService covers /auth.
type AuthService struct{ d Doer }

// RegisterParent creates a parent account and returns its token.
func (s *AuthService) RegisterParent(ctx context.Context, in models.UserCreateParent) (*models.Token, error) {
	var out models.Token
	if err := s.d.Post(ctx, "/auth/register/parent", in, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterStudent creates a student account. Only a parent may call it.
func (s *AuthService) RegisterStudent(ctx context.Context, in models.UserCreateStudent, token string) (*models.User, error) {
	var out models.User
	if err := s.d.Post(ctx, "/auth/register/student", in, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a token.
func (s *AuthService) Login(ctx context.Context, in models.UserLogin) (*models.Token, error) {
	var out models.Token
	if err := s.d.Post(ctx, "/auth/login", in, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser resolves the account behind token.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	var out models.User
	if err := s.d.Get(ctx, "/auth/me", token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
