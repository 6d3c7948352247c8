package server

import (
	"net/http"
	"strings"

	"github.com/atinyakov/kongtze/internal/middleware"
	"github.com/atinyakov/kongtze/internal/models"
)

func (b *Backend) tokenResponse(w http.ResponseWriter, status int, u models.User) {
	token, err := middleware.IssueToken(b.secret, u.UserID, u.IsParent, b.ttl)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, status, models.Token{AccessToken: token, TokenType: "bearer"})
}

func (b *Backend) registerParent(w http.ResponseWriter, r *http.Request) {
	var req models.UserCreateParent
	if !decode(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	b.mu.Lock()
	for _, acc := range b.users {
		if acc.user.Email != nil && *acc.user.Email == email {
			b.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	u := b.addUser(req.Name, email, req.Password, "", true)
	b.mu.Unlock()

	b.tokenResponse(w, http.StatusCreated, u)
}

func (b *Backend) registerStudent(w http.ResponseWriter, r *http.Request) {
	if !principal(r).Parent {
		writeDetail(w, http.StatusForbidden, "Only parents can register students")
		return
	}
	var req models.UserCreateStudent
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, acc := range b.users {
		if acc.pin != "" && acc.pin == req.PIN {
			writeDetail(w, http.StatusBadRequest, "PIN already in use")
			return
		}
	}
	writeJSON(w, http.StatusCreated, b.addUser(req.Name, "", "", req.PIN, false))
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLogin
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	var found *account
	if req.PIN != "" {
		for _, acc := range b.users {
			if !acc.user.IsParent && acc.pin == req.PIN {
				found = acc
				break
			}
		}
	} else {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		for _, acc := range b.users {
			if acc.user.Email != nil && *acc.user.Email == email && acc.password == req.Password {
				found = acc
				break
			}
		}
	}
	var u models.User
	if found != nil {
		u = found.user
	}
	b.mu.Unlock()

	switch {
	case found == nil && req.PIN != "":
		writeDetail(w, http.StatusUnauthorized, "Invalid PIN")
	case found == nil:
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
	default:
		b.tokenResponse(w, http.StatusOK, u)
	}
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	acc, ok := b.users[principal(r).UserID]
	var u models.User
	if ok {
		u = acc.user
	}
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (b *Backend) studentProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p := principal(r)
	if !p.Parent && p.UserID != id {
		writeDetail(w, http.StatusForbidden, "Not allowed to view this profile")
		return
	}
	b.mu.Lock()
	profile, found := b.profiles[id]
	var out models.StudentProfile
	if found {
		out = *profile
	}
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Student profile not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
