package models

// GenerationMode selects which content the backend's AI uses for questions.
type GenerationMode string

const (
	// PureAI generates questions from the subject alone.
	PureAI GenerationMode = "pure_ai"
	// NotesBased grounds questions in uploaded class notes.
	NotesBased GenerationMode = "notes_based"
	// HomeworkBased grounds questions in uploaded homework.
	HomeworkBased GenerationMode = "homework_based"
)

// Question is a multiple-choice question without its answer.
type Question struct {
	QuestionID       int               `json:"question_id"`
	TestID           int               `json:"test_id"`
	QuestionText     string            `json:"question_text"`
	Options          map[string]string `json:"options"` // A..D
	TimeLimitSeconds int               `json:"time_limit_seconds"`
	CreatedAt        Timestamp         `json:"created_at"`
}

// QuestionWithAnswer is returned when reviewing a submitted result.
type QuestionWithAnswer struct {
	Question
	CorrectAnswer string `json:"correct_answer"`
}

// Test is an AI-generated quiz.
type Test struct {
	TestID            int            `json:"test_id"`
	UserID            int            `json:"user_id"`
	SubjectID         int            `json:"subject_id"`
	Title             string         `json:"title"`
	DifficultyLevel   int            `json:"difficulty_level"`
	TimeLimitMinutes  int            `json:"time_limit_minutes"`
	TotalQuestions    int            `json:"total_questions"`
	SourceNoteIDs     []int          `json:"source_note_ids,omitempty"`
	SourceHomeworkIDs []int          `json:"source_homework_ids,omitempty"`
	GenerationMode    GenerationMode `json:"generation_mode"`
	CreatedAt         Timestamp      `json:"created_at"`
}

// TestWithQuestions is a Test together with its questions.
type TestWithQuestions struct {
	Test
	Questions []Question `json:"questions"`
}

// TestCreate is the payload of POST /tests.
type TestCreate struct {
	SubjectID        int            `json:"subject_id" validate:"required,gt=0"`
	Title            string         `json:"title" validate:"required,max=255"`
	DifficultyLevel  int            `json:"difficulty_level" validate:"min=1,max=4"`
	TimeLimitMinutes int            `json:"time_limit_minutes,omitempty" validate:"omitempty,min=5,max=120"`
	TotalQuestions   int            `json:"total_questions,omitempty" validate:"omitempty,min=1,max=50"`
	NoteIDs          []int          `json:"note_ids,omitempty"`
	HomeworkIDs      []int          `json:"homework_ids,omitempty"`
	GenerationMode   GenerationMode `json:"generation_mode,omitempty" validate:"omitempty,oneof=pure_ai notes_based homework_based"`
}

// TestSubmission is the payload of POST /tests/submit. Answers maps a
// question id (as a string) to the chosen letter.
type TestSubmission struct {
	TestID           int               `json:"test_id"`
	Answers          map[string]string `json:"answers"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
}

// TestResult is a graded submission.
type TestResult struct {
	ResultID         int               `json:"result_id"`
	TestID           int               `json:"test_id"`
	UserID           int               `json:"user_id"`
	Score            int               `json:"score"`
	TotalScore       int               `json:"total_score"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	Answers          map[string]string `json:"answers"`
	RewardPoints     int               `json:"reward_points"`
	CompletedAt      Timestamp         `json:"completed_at"`
}

// TestResultWithReview adds the answer key and the percentage score.
type TestResultWithReview struct {
	TestResult
	Questions  []QuestionWithAnswer `json:"questions"`
	Percentage float64              `json:"percentage"`
}
