// Package schedule turns a generated weekly schedule into real study
// sessions and, optionally, one practice test per subject.
package schedule

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/kongtze/internal/models"
)

// DefaultConcurrency bounds the number of in-flight requests per phase.
const DefaultConcurrency = 4

const (
	practiceTestMinutes   = 30
	practiceTestQuestions = 10
)

var difficultyByName = map[string]int{
	"beginner":     models.DifficultyBeginner,
	"intermediate": models.DifficultyIntermediate,
	"advanced":     models.DifficultyAdvanced,
}

// SessionCreator creates study sessions. *api.StudySessionService satisfies it.
type SessionCreator interface {
	Create(ctx context.Context, in models.StudySessionCreate, token string) (*models.StudySession, error)
}

// TestCreator creates tests. *api.TestService satisfies it.
type TestCreator interface {
	Create(ctx context.Context, in models.TestCreate, token string) (*models.TestWithQuestions, error)
}

// Options controls Apply.
type Options struct {
	// Difficulties maps subject id to beginner, intermediate or advanced.
	// Subjects missing here use the schedule's recommended difficulty.
	Difficulties map[int]string
	// SubjectNames maps subject id to display name for test titles.
	SubjectNames map[int]string
	// GenerateTests adds one practice test per distinct subject.
	GenerateTests bool
	// Concurrency defaults to DefaultConcurrency.
	Concurrency int
}

// Result lists what was created. On error it holds every request that
// succeeded, including those already in flight when the failure happened;
// nothing is rolled back.
type Result struct {
	Sessions []models.StudySession
	Tests    []models.TestWithQuestions
}

// Applier creates the sessions and tests of a generated schedule.
type Applier struct {
	sessions SessionCreator
	tests    TestCreator
	log      *zap.Logger
}

// NewApplier returns an Applier. A nil logger is replaced with a no-op one.
func NewApplier(sessions SessionCreator, tests TestCreator, log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{sessions: sessions, tests: tests, log: log}
}

// Difficulty resolves the level used for subjectID: the named level from
// opts, then the schedule's recommendation, then intermediate.
func Difficulty(opts Options, subjectID, recommended int) int {
	if d, ok := difficultyByName[opts.Difficulties[subjectID]]; ok {
		return d
	}
	if recommended >= models.DifficultyBeginner && recommended <= models.DifficultyExpert {
		return recommended
	}
	return models.DifficultyIntermediate
}

// Apply creates every scheduled session concurrently, then, if requested,
// every practice test. After the first failure no new request is started,
// requests already sent run to completion, and the test phase is skipped.
func (a *Applier) Apply(ctx context.Context, token string, sched models.GeneratedSchedule, opts Options) (*Result, error) {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	res := &Result{}

	sessions := make([]*models.StudySession, len(sched.Schedule))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range sched.Schedule {
		in := models.StudySessionCreate{
			SubjectID:       item.SubjectID,
			DayOfWeek:       item.DayOfWeek,
			StartTime:       item.StartTime,
			DurationMinutes: item.DurationMinutes,
			DifficultyLevel: Difficulty(opts, item.SubjectID, item.RecommendedDifficulty),
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := a.sessions.Create(ctx, in, token)
			if err != nil {
				return fmt.Errorf("create session for %s %s: %w", dayName(in.DayOfWeek), in.StartTime, err)
			}
			sessions[i] = s
			return nil
		})
	}
	err := g.Wait()
	for _, s := range sessions {
		if s != nil {
			res.Sessions = append(res.Sessions, *s)
		}
	}
	if err != nil {
		a.log.Warn("schedule apply stopped", zap.Int("sessions_created", len(res.Sessions)), zap.Error(err))
		return res, err
	}
	if !opts.GenerateTests {
		return res, nil
	}

	subjects := distinctSubjects(sched)
	tests := make([]*models.TestWithQuestions, len(subjects))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range subjects {
		name, ok := opts.SubjectNames[id]
		if !ok {
			name = "Subject"
		}
		in := models.TestCreate{
			SubjectID:        id,
			Title:            "Practice Test for " + name,
			DifficultyLevel:  Difficulty(opts, id, sched.AdaptiveDifficulties[id]),
			TimeLimitMinutes: practiceTestMinutes,
			TotalQuestions:   practiceTestQuestions,
			GenerationMode:   models.PureAI,
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := a.tests.Create(ctx, in, token)
			if err != nil {
				return fmt.Errorf("create practice test for subject %d: %w", in.SubjectID, err)
			}
			tests[i] = t
			return nil
		})
	}
	err = g.Wait()
	for _, t := range tests {
		if t != nil {
			res.Tests = append(res.Tests, *t)
		}
	}
	if err != nil {
		a.log.Warn("practice test creation stopped", zap.Int("tests_created", len(res.Tests)), zap.Error(err))
		return res, err
	}
	a.log.Info("schedule applied", zap.Int("sessions", len(res.Sessions)), zap.Int("tests", len(res.Tests)))
	return res, nil
}

func dayName(d int) string {
	if d < 0 || d >= len(models.DayNames) {
		return fmt.Sprintf("day %d", d)
	}
	return models.DayNames[d]
}

func distinctSubjects(sched models.GeneratedSchedule) []int {
	seen := map[int]bool{}
	var out []int
	for _, item := range sched.Schedule {
		if !seen[item.SubjectID] {
			seen[item.SubjectID] = true
			out = append(out, item.SubjectID)
		}
	}
	sort.Ints(out)
	return out
}
