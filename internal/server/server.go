// Package server is an in-memory implementation of the Kongtze REST API. It
// backs cmd/server for local development and the client's integration tests.
// AI features (OCR, question generation, schedule generation) are replaced
// with deterministic stand-ins.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/atinyakov/kongtze/internal/middleware"
	"github.com/atinyakov/kongtze/internal/models"
	"github.com/atinyakov/kongtze/internal/validate"
)

const (
	// LuckyDrawCost is the number of points one lucky draw spends.
	LuckyDrawCost = 100
	// PerfectScoreBonus is added on top of one point per correct answer.
	PerfectScoreBonus = 5
)

var errRevoked = errors.New("token revoked")

type account struct {
	user     models.User
	password string
	pin      string
}

type testRecord struct {
	test    models.TestWithQuestions
	answers map[int]string // question id -> correct letter
}

type failure struct {
	method string
	path   string
	status int
	detail string
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// WithSecret sets the HS256 signing key for access tokens.
func WithSecret(secret []byte) Option {
	return func(b *Backend) { b.secret = secret }
}

// WithTokenTTL sets how long issued tokens stay valid.
func WithTokenTTL(ttl time.Duration) Option {
	return func(b *Backend) { b.ttl = ttl }
}

// WithSeed makes lucky draws reproducible.
func WithSeed(seed int64) Option {
	return func(b *Backend) { b.rnd = rand.New(rand.NewSource(seed)) }
}

// Backend holds all API state in memory. It is safe for concurrent use.
type Backend struct {
	secret []byte
	ttl    time.Duration
	log    *zap.Logger

	mu        sync.Mutex
	rnd       *rand.Rand
	lastID    int
	users     map[int]*account
	subjects  []models.Subject
	sessions  map[int]*models.StudySession
	tests     map[int]*testRecord
	results   map[int]*models.TestResult
	homework  map[int]*models.Homework
	notes     map[int]*models.ClassNoteWithTopics
	ledger    map[int][]models.Reward
	gifts     map[int]*models.Gift
	templates map[int]*models.PromptTemplate
	profiles  map[int]*models.StudentProfile
	revoked   map[string]bool
	failures  []failure
}

// New returns a Backend seeded with the default subjects, gift catalog and
// system prompt templates.
func New(opts ...Option) *Backend {
	b := &Backend{
		secret:    []byte("kongtze-dev-secret"),
		ttl:       7 * 24 * time.Hour,
		log:       zap.NewNop(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		users:     map[int]*account{},
		sessions:  map[int]*models.StudySession{},
		tests:     map[int]*testRecord{},
		results:   map[int]*models.TestResult{},
		homework:  map[int]*models.Homework{},
		notes:     map[int]*models.ClassNoteWithTopics{},
		ledger:    map[int][]models.Reward{},
		gifts:     map[int]*models.Gift{},
		templates: map[int]*models.PromptTemplate{},
		profiles:  map[int]*models.StudentProfile{},
		revoked:   map[string]bool{},
	}
	for _, o := range opts {
		o(b)
	}
	b.seed()
	return b
}

func (b *Backend) seed() {
	for _, s := range []struct{ name, display string }{
		{"math", "Mathematics"},
		{"english", "English"},
		{"chinese", "Chinese"},
		{"science", "Science"},
	} {
		b.subjects = append(b.subjects, models.Subject{SubjectID: b.nextID(), Name: s.name, DisplayName: s.display})
	}
	now := b.now()
	for _, g := range []struct {
		name string
		tier models.GiftTier
		p    float64
	}{
		{"Theme park ticket", models.TierGold, 0.05},
		{"Book voucher", models.TierSilver, 0.25},
		{"Sticker pack", models.TierBronze, 0.70},
	} {
		id := b.nextID()
		b.gifts[id] = &models.Gift{GiftID: id, Name: g.name, Tier: g.tier, Probability: g.p, CreatedAt: now}
	}
	id := b.nextID()
	b.templates[id] = &models.PromptTemplate{
		TemplateID:     id,
		TemplateName:   "Default test generation",
		TemplateType:   "test_generation",
		PromptTemplate: "Write {question_count} {difficulty} questions about {subject}.",
		IsActive:       true,
		IsSystem:       true,
	}
}

// nextID must be called with mu held (or before the backend is shared).
func (b *Backend) nextID() int {
	b.lastID++
	return b.lastID
}

func (b *Backend) now() models.Timestamp {
	return models.Timestamp{Time: time.Now().UTC()}
}

// AddParent creates a parent account directly.
func (b *Backend) AddParent(name, email, password string) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUser(name, email, password, "", true)
}

// AddStudent creates a student account directly.
func (b *Backend) AddStudent(name, pin string) models.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUser(name, "", "", pin, false)
}

func (b *Backend) addUser(name, email, password, pin string, parent bool) models.User {
	now := b.now()
	u := models.User{UserID: b.nextID(), Name: name, IsParent: parent, CreatedAt: now, UpdatedAt: now}
	if email != "" {
		e := email
		u.Email = &e
	}
	b.users[u.UserID] = &account{user: u, password: password, pin: pin}
	if !parent {
		b.profiles[u.UserID] = &models.StudentProfile{ProfileID: b.nextID(), UserID: u.UserID, CreatedAt: now, UpdatedAt: now}
	}
	return u
}

// AddPoints appends a ledger entry for userID.
func (b *Backend) AddPoints(userID, points int, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addReward(userID, points, reason)
}

func (b *Backend) addReward(userID, points int, reason string) models.Reward {
	r := models.Reward{
		RewardID:  b.nextID(),
		UserID:    userID,
		Points:    points,
		Reason:    reason,
		Balance:   b.balance(userID) + points,
		CreatedAt: b.now(),
	}
	b.ledger[userID] = append(b.ledger[userID], r)
	return r
}

func (b *Backend) balance(userID int) int {
	entries := b.ledger[userID]
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Balance
}

// IssueToken signs an access token for an existing user.
func (b *Backend) IssueToken(userID int) (string, error) {
	b.mu.Lock()
	acc, ok := b.users[userID]
	b.mu.Unlock()
	if !ok {
		return "", errors.New("unknown user " + strconv.Itoa(userID))
	}
	return middleware.IssueToken(b.secret, userID, acc.user.IsParent, b.ttl)
}

// Revoke makes every later request bearing token fail with 401.
func (b *Backend) Revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = true
}

// FailNext makes the next request matching method and path (relative to
// /api, e.g. "/auth/me") fail with status and a {"detail": detail} body.
func (b *Backend) FailNext(method, path string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = append(b.failures, failure{method: method, path: "/api" + path, status: status, detail: detail})
}

// Sessions returns a copy of userID's study sessions.
func (b *Backend) Sessions(userID int) []models.StudySession {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userSessions(userID)
}

// Tests returns userID's tests without their questions.
func (b *Backend) Tests(userID int) []models.Test {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userTests(userID, nil)
}

func (b *Backend) verify(ctx context.Context, token string) (middleware.Principal, error) {
	b.mu.Lock()
	revoked := b.revoked[token]
	b.mu.Unlock()
	if revoked {
		return middleware.Principal{}, errRevoked
	}
	p, err := middleware.ParseToken(b.secret, token)
	if err != nil {
		return middleware.Principal{}, err
	}
	b.mu.Lock()
	_, ok := b.users[p.UserID]
	b.mu.Unlock()
	if !ok {
		return middleware.Principal{}, errors.New("user not found")
	}
	return p, nil
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		for i, f := range b.failures {
			if f.method == r.Method && f.path == r.URL.Path {
				b.failures = append(b.failures[:i], b.failures[i+1:]...)
				b.mu.Unlock()
				writeDetail(w, f.status, f.detail)
				return
			}
		}
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// validationDetail is one entry of a 422 detail list.
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, loc, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationDetail{
		"detail": {{Loc: []string{loc, field}, Msg: msg, Type: "value_error"}},
	})
}

// decode reads a JSON body into v and runs its validation tags. On failure
// it writes a 422 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, "body", "body", "invalid JSON: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verr *validate.ValidationError
		if !errors.As(err, &verr) {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return false
		}
		details := make([]validationDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, validationDetail{Loc: []string{"body", f.Field}, Msg: f.Message, Type: "value_error"})
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string][]validationDetail{"detail": details})
		return false
	}
	return true
}

func principal(r *http.Request) middleware.Principal {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return p
}

// pathID parses the {id} URL parameter. On failure it writes a 422.
func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeValidation(w, "path", "id", "value is not a valid integer")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeValidation(w, "query", name, "value is not a valid integer")
		return nil, false
	}
	return &n, true
}

func (b *Backend) subject(id int) (models.Subject, bool) {
	for _, s := range b.subjects {
		if s.SubjectID == id {
			return s, true
		}
	}
	return models.Subject{}, false
}
