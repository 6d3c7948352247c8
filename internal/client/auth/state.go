package auth

import "github.com/atinyakov/kongtze/internal/models"

// Phase is the session lifecycle: Uninitialized, then Loading while the
// stored token is checked, then Authenticated or Anonymous.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseAnonymous
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of the session. Mutating it has no effect
// on the manager.
type State struct {
	User            *models.User
	Token           string
	Phase           Phase
	IsLoading       bool
	IsAuthenticated bool
}

func newState(user *models.User, token string, phase Phase) State {
	s := State{
		Token:     token,
		Phase:     phase,
		IsLoading: phase <= PhaseLoading,
	}
	if user != nil {
		u := *user
		if user.Email != nil {
			email := *user.Email
			u.Email = &email
		}
		s.User = &u
	}
	s.IsAuthenticated = s.User != nil && token != ""
	return s
}
