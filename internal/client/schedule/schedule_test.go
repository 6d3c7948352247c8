package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/kongtze/internal/models"
)

// fakeSessions records creations and can fail selected subjects.
type fakeSessions struct {
	mu       sync.Mutex
	created  []models.StudySessionCreate
	failFor  int
	delay    time.Duration
	// failAfter holds the failing call until that many calls are in flight
	failAfter int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeSessions) Create(ctx context.Context, in models.StudySessionCreate, token string) (*models.StudySession, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if in.SubjectID == f.failFor {
		for deadline := time.Now().Add(time.Second); f.inFlight.Load() < f.failAfter && time.Now().Before(deadline); {
			time.Sleep(time.Millisecond)
		}
		return nil, errors.New("backend down")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return &models.StudySession{SessionID: 100 + len(f.created), SubjectID: in.SubjectID, DayOfWeek: in.DayOfWeek}, nil
}

type fakeTests struct {
	mu      sync.Mutex
	created []models.TestCreate
	err     error
}

func (f *fakeTests) Create(ctx context.Context, in models.TestCreate, token string) (*models.TestWithQuestions, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return &models.TestWithQuestions{Test: models.Test{TestID: 200 + len(f.created), SubjectID: in.SubjectID, Title: in.Title}}, nil
}

func sampleSchedule() models.GeneratedSchedule {
	return models.GeneratedSchedule{
		Schedule: []models.ScheduledSession{
			{DayOfWeek: 0, SubjectID: 1, StartTime: "16:00", DurationMinutes: 30, RecommendedDifficulty: 3},
			{DayOfWeek: 0, SubjectID: 2, StartTime: "16:40", DurationMinutes: 30, RecommendedDifficulty: 2},
			{DayOfWeek: 1, SubjectID: 2, StartTime: "16:00", DurationMinutes: 30, RecommendedDifficulty: 2},
			{DayOfWeek: 1, SubjectID: 1, StartTime: "16:40", DurationMinutes: 30, RecommendedDifficulty: 3},
		},
		AdaptiveDifficulties: map[int]int{1: 3, 2: 2},
	}
}

func TestDifficulty(t *testing.T) {
	opts := Options{Difficulties: map[int]string{1: "beginner", 2: "expert"}}
	tests := []struct {
		name        string
		subjectID   int
		recommended int
		want        int
	}{
		{"named level wins", 1, 3, 1},
		{"unknown name falls back to recommendation", 2, 3, 3},
		{"no name uses recommendation", 3, 4, 4},
		{"nothing usable", 3, 0, 2},
		{"out of range recommendation", 3, 9, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Difficulty(opts, tt.subjectID, tt.recommended); got != tt.want {
				t.Errorf("Difficulty() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestApply_SessionsAndTests(t *testing.T) {
	sessions := &fakeSessions{}
	tests := &fakeTests{}
	a := NewApplier(sessions, tests, nil)

	res, err := a.Apply(context.Background(), "tok", sampleSchedule(), Options{
		Difficulties:  map[int]string{2: "beginner"},
		SubjectNames:  map[int]string{1: "Mathematics"},
		GenerateTests: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 4)
	require.Len(t, res.Tests, 2)

	for _, in := range sessions.created {
		switch in.SubjectID {
		case 1:
			assert.Equal(t, 3, in.DifficultyLevel)
		case 2:
			assert.Equal(t, 1, in.DifficultyLevel)
		}
	}

	byID := map[int]models.TestCreate{}
	for _, in := range tests.created {
		byID[in.SubjectID] = in
	}
	assert.Equal(t, models.TestCreate{
		SubjectID:        1,
		Title:            "Practice Test for Mathematics",
		DifficultyLevel:  3,
		TimeLimitMinutes: 30,
		TotalQuestions:   10,
		GenerationMode:   models.PureAI,
	}, byID[1])
	assert.Equal(t, "Practice Test for Subject", byID[2].Title)
	assert.Equal(t, 1, byID[2].DifficultyLevel)
}

func TestApply_NoTestsUnlessAsked(t *testing.T) {
	tests := &fakeTests{}
	res, err := NewApplier(&fakeSessions{}, tests, nil).Apply(context.Background(), "tok", sampleSchedule(), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 4)
	assert.Empty(t, res.Tests)
	assert.Empty(t, tests.created)
}

func TestApply_SessionFailureSkipsTests(t *testing.T) {
	sessions := &fakeSessions{failFor: 2}
	tests := &fakeTests{}

	res, err := NewApplier(sessions, tests, nil).Apply(context.Background(), "tok", sampleSchedule(), Options{
		GenerateTests: true,
		Concurrency:   1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	// the first item succeeded before the failure
	assert.NotEmpty(t, res.Sessions)
	assert.Less(t, len(res.Sessions), 4)
	assert.Empty(t, tests.created)
}

func TestApply_FailureLetsInFlightRequestsFinish(t *testing.T) {
	sessions := &fakeSessions{failFor: 2, delay: 50 * time.Millisecond, failAfter: 4}

	res, err := NewApplier(sessions, &fakeTests{}, nil).Apply(context.Background(), "tok", sampleSchedule(), Options{
		Concurrency: 4,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
	// both subject 1 sessions were already sent when subject 2 failed
	require.Len(t, res.Sessions, 2)
	for _, s := range res.Sessions {
		assert.Equal(t, 1, s.SubjectID)
	}
	assert.Len(t, sessions.created, 2)
}

func TestApply_TestFailureKeepsSessions(t *testing.T) {
	res, err := NewApplier(&fakeSessions{}, &fakeTests{err: errors.New("quota")}, nil).Apply(
		context.Background(), "tok", sampleSchedule(), Options{GenerateTests: true})
	require.Error(t, err)
	assert.Len(t, res.Sessions, 4)
	assert.Empty(t, res.Tests)
}

func TestApply_BoundedConcurrency(t *testing.T) {
	sessions := &fakeSessions{delay: 20 * time.Millisecond}
	sched := models.GeneratedSchedule{}
	for i := 0; i < 12; i++ {
		sched.Schedule = append(sched.Schedule, models.ScheduledSession{DayOfWeek: i % 7, SubjectID: 1, StartTime: "10:00", DurationMinutes: 30})
	}

	res, err := NewApplier(sessions, &fakeTests{}, nil).Apply(context.Background(), "tok", sched, Options{Concurrency: 3})
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 12)
	assert.LessOrEqual(t, sessions.peak.Load(), int32(3))
	assert.Greater(t, sessions.peak.Load(), int32(1))
}
