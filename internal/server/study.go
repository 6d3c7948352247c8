package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/atinyakov/kongtze/internal/models"
)

const (
	defaultSessionMinutes = 30
	scheduleBreakMinutes  = 10
)

var difficultyByName = map[string]int{
	"beginner":     models.DifficultyBeginner,
	"intermediate": models.DifficultyIntermediate,
	"advanced":     models.DifficultyAdvanced,
	"expert":       models.DifficultyExpert,
}

func (b *Backend) listSubjects(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := append([]models.Subject(nil), b.subjects...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getSubject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	s, found := b.subject(id)
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Subject not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// userSessions must be called with mu held.
func (b *Backend) userSessions(userID int) []models.StudySession {
	out := []models.StudySession{}
	for _, s := range b.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (b *Backend) listSessions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := b.userSessions(principal(r).UserID)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

// ownSession must be called with mu held.
func (b *Backend) ownSession(r *http.Request, id int) (*models.StudySession, bool) {
	s, ok := b.sessions[id]
	if !ok || s.UserID != principal(r).UserID {
		return nil, false
	}
	return s, true
}

func (b *Backend) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	s, found := b.ownSession(r, id)
	var out models.StudySession
	if found {
		out = *s
	}
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Study session not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// withSeconds turns "HH:MM" into "HH:MM:00".
func withSeconds(clock string) string {
	if strings.Count(clock, ":") == 1 {
		return clock + ":00"
	}
	return clock
}

func (b *Backend) createSession(w http.ResponseWriter, r *http.Request) {
	var req models.StudySessionCreate
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subject(req.SubjectID); !ok {
		writeDetail(w, http.StatusNotFound, "Subject not found")
		return
	}
	now := b.now()
	s := &models.StudySession{
		SessionID:       b.nextID(),
		UserID:          principal(r).UserID,
		SubjectID:       req.SubjectID,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       withSeconds(req.StartTime),
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if s.DurationMinutes == 0 {
		s.DurationMinutes = defaultSessionMinutes
	}
	if req.DifficultyLevel != 0 {
		d := req.DifficultyLevel
		s.DifficultyLevel = &d
	}
	if req.Title != "" {
		t := req.Title
		s.Title = &t
	}
	b.sessions[s.SessionID] = s
	writeJSON(w, http.StatusCreated, *s)
}

func (b *Backend) updateSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req models.StudySessionUpdate
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s, found := b.ownSession(r, id)
	if !found {
		writeDetail(w, http.StatusNotFound, "Study session not found")
		return
	}
	if req.SubjectID != nil {
		if _, ok := b.subject(*req.SubjectID); !ok {
			writeDetail(w, http.StatusNotFound, "Subject not found")
			return
		}
		s.SubjectID = *req.SubjectID
	}
	if req.DayOfWeek != nil {
		s.DayOfWeek = *req.DayOfWeek
	}
	if req.StartTime != nil {
		s.StartTime = withSeconds(*req.StartTime)
	}
	if req.DurationMinutes != nil {
		s.DurationMinutes = *req.DurationMinutes
	}
	if req.DifficultyLevel != nil {
		d := *req.DifficultyLevel
		s.DifficultyLevel = &d
	}
	if req.Title != nil {
		t := *req.Title
		s.Title = &t
	}
	s.UpdatedAt = b.now()
	writeJSON(w, http.StatusOK, *s)
}

func (b *Backend) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.ownSession(r, id); !found {
		writeDetail(w, http.StatusNotFound, "Study session not found")
		return
	}
	delete(b.sessions, id)
	w.WriteHeader(http.StatusNoContent)
}

// minutes parses "HH:MM[:SS]" into minutes after midnight. The input has
// already passed the clock validation.
func minutes(clock string) int {
	var h, m int
	_, _ = fmt.Sscanf(clock, "%d:%d", &h, &m)
	return h*60 + m
}

func clock(min int) string {
	return fmt.Sprintf("%02d:%02d", min/60, min%60)
}

// generateSchedule lays the selected subjects out round-robin inside the
// [startTime, endTime) window of every weekday, rotating the order each day.
func (b *Backend) generateSchedule(w http.ResponseWriter, r *http.Request) {
	var prefs models.SchedulePreferences
	if !decode(w, r, &prefs) {
		return
	}
	start, end := minutes(prefs.StartTime), minutes(prefs.EndTime)
	if end <= start {
		writeDetail(w, http.StatusBadRequest, "endTime must be after startTime")
		return
	}

	b.mu.Lock()
	var selected []models.Subject
	for _, id := range prefs.Subjects {
		if s, ok := b.subject(id); ok {
			selected = append(selected, s)
		}
	}
	b.mu.Unlock()
	if len(selected) == 0 {
		writeDetail(w, http.StatusBadRequest, "At least one subject must be selected")
		return
	}

	adaptive := make(map[int]int, len(selected))
	for _, s := range selected {
		d, ok := difficultyByName[strings.ToLower(prefs.SubjectDifficulties[s.SubjectID])]
		if !ok {
			d = models.DifficultyIntermediate
		}
		adaptive[s.SubjectID] = d
	}

	perDay := int(prefs.HoursPerDay * 60)
	dur := perDay / len(selected)
	dur -= dur % 15
	dur = max(15, min(120, dur))

	out := models.GeneratedSchedule{Schedule: []models.ScheduledSession{}, AdaptiveDifficulties: adaptive}
	for day := models.Monday; day <= models.Sunday; day++ {
		cursor, planned := start, 0
		for i := range selected {
			if planned >= perDay || cursor+dur > end {
				break
			}
			s := selected[(i+day)%len(selected)]
			out.Schedule = append(out.Schedule, models.ScheduledSession{
				DayOfWeek:             day,
				SubjectID:             s.SubjectID,
				StartTime:             clock(cursor),
				DurationMinutes:       dur,
				RecommendedDifficulty: adaptive[s.SubjectID],
			})
			cursor += dur + scheduleBreakMinutes
			planned += dur
		}
	}
	writeJSON(w, http.StatusOK, out)
}
