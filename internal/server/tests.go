package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/atinyakov/kongtze/internal/models"
)

const (
	defaultTestMinutes   = 30
	defaultTestQuestions = 10
)

var letters = []string{"A", "B", "C", "D"}

// userTests must be called with mu held.
func (b *Backend) userTests(userID int, subjectID *int) []models.Test {
	out := []models.Test{}
	for _, rec := range b.tests {
		t := rec.test.Test
		if t.UserID != userID || (subjectID != nil && t.SubjectID != *subjectID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestID > out[j].TestID })
	return out
}

// createTest stands in for AI generation: question k of a test has the
// correct answer letters[k%4].
func (b *Backend) createTest(w http.ResponseWriter, r *http.Request) {
	var req models.TestCreate
	if !decode(w, r, &req) {
		return
	}
	if req.TimeLimitMinutes == 0 {
		req.TimeLimitMinutes = defaultTestMinutes
	}
	if req.TotalQuestions == 0 {
		req.TotalQuestions = defaultTestQuestions
	}
	if req.GenerationMode == "" {
		req.GenerationMode = models.PureAI
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subject, ok := b.subject(req.SubjectID)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Subject not found")
		return
	}
	userID := principal(r).UserID
	for _, id := range req.NoteIDs {
		if n, ok := b.notes[id]; !ok || n.UserID != userID {
			writeDetail(w, http.StatusNotFound, "One or more notes not found or do not belong to you")
			return
		}
	}
	for _, id := range req.HomeworkIDs {
		if h, ok := b.homework[id]; !ok || h.UserID != userID {
			writeDetail(w, http.StatusNotFound, "One or more homework not found or do not belong to you")
			return
		}
	}
	now := b.now()
	rec := &testRecord{
		test: models.TestWithQuestions{Test: models.Test{
			TestID:            b.nextID(),
			UserID:            userID,
			SubjectID:         req.SubjectID,
			Title:             req.Title,
			DifficultyLevel:   req.DifficultyLevel,
			TimeLimitMinutes:  req.TimeLimitMinutes,
			TotalQuestions:    req.TotalQuestions,
			SourceNoteIDs:     req.NoteIDs,
			SourceHomeworkIDs: req.HomeworkIDs,
			GenerationMode:    req.GenerationMode,
			CreatedAt:         now,
		}},
		answers: map[int]string{},
	}
	perQuestion := req.TimeLimitMinutes * 60 / req.TotalQuestions
	for k := 0; k < req.TotalQuestions; k++ {
		q := models.Question{
			QuestionID:       b.nextID(),
			TestID:           rec.test.TestID,
			QuestionText:     fmt.Sprintf("%s question %d", subject.DisplayName, k+1),
			Options:          map[string]string{},
			TimeLimitSeconds: perQuestion,
			CreatedAt:        now,
		}
		for i, l := range letters {
			q.Options[l] = fmt.Sprintf("Option %d", i+1)
		}
		rec.answers[q.QuestionID] = letters[k%len(letters)]
		rec.test.Questions = append(rec.test.Questions, q)
	}
	b.tests[rec.test.TestID] = rec
	writeJSON(w, http.StatusCreated, rec.test)
}

func (b *Backend) listTests(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := queryInt(w, r, "subject_id")
	if !ok {
		return
	}
	b.mu.Lock()
	out := b.userTests(principal(r).UserID, subjectID)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	rec, found := b.tests[id]
	found = found && rec.test.UserID == principal(r).UserID
	var out models.TestWithQuestions
	if found {
		out = rec.test
	}
	b.mu.Unlock()
	if !found {
		writeDetail(w, http.StatusNotFound, "Test not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) submitTest(w http.ResponseWriter, r *http.Request) {
	var req models.TestSubmission
	if !decode(w, r, &req) {
		return
	}
	userID := principal(r).UserID

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.tests[req.TestID]
	if !ok || rec.test.UserID != userID {
		writeDetail(w, http.StatusNotFound, "Test not found")
		return
	}
	score := 0
	for qid, correct := range rec.answers {
		if req.Answers[strconv.Itoa(qid)] == correct {
			score++
		}
	}
	total := len(rec.answers)
	points := score
	if score == total {
		points += PerfectScoreBonus
	}
	res := &models.TestResult{
		ResultID:         b.nextID(),
		TestID:           req.TestID,
		UserID:           userID,
		Score:            score,
		TotalScore:       total,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Answers:          req.Answers,
		RewardPoints:     points,
		CompletedAt:      b.now(),
	}
	if res.Answers == nil {
		res.Answers = map[string]string{}
	}
	b.results[res.ResultID] = res
	b.addReward(userID, points, fmt.Sprintf("Completed test: %s (%d/%d)", rec.test.Title, score, total))
	writeJSON(w, http.StatusOK, *res)
}

func (b *Backend) listResults(w http.ResponseWriter, r *http.Request) {
	userID := principal(r).UserID
	b.mu.Lock()
	out := []models.TestResult{}
	for _, res := range b.results {
		if res.UserID == userID {
			out = append(out, *res)
		}
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ResultID > out[j].ResultID })
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) getResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	res, found := b.results[id]
	if !found || res.UserID != principal(r).UserID {
		writeDetail(w, http.StatusNotFound, "Test result not found")
		return
	}
	out := models.TestResultWithReview{TestResult: *res, Questions: []models.QuestionWithAnswer{}}
	if rec, ok := b.tests[res.TestID]; ok {
		for _, q := range rec.test.Questions {
			out.Questions = append(out.Questions, models.QuestionWithAnswer{Question: q, CorrectAnswer: rec.answers[q.QuestionID]})
		}
	}
	if res.TotalScore > 0 {
		out.Percentage = float64(res.Score) / float64(res.TotalScore) * 100
	}
	writeJSON(w, http.StatusOK, out)
}
