package models

// Weekday indexes used by the backend: 0 is Monday, 6 is Sunday.
const (
	Monday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DayNames maps DayOfWeek values to English names.
var DayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Difficulty levels shared by study sessions and tests.
const (
	DifficultyBeginner     = 1
	DifficultyIntermediate = 2
	DifficultyAdvanced     = 3
	DifficultyExpert       = 4
)

// Subject is a school subject seeded by the backend.
type Subject struct {
	SubjectID   int     `json:"subject_id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Description *string `json:"description,omitempty"`
}

// StudySession is one recurring weekly slot on the study calendar.
type StudySession struct {
	SessionID       int       `json:"session_id"`
	UserID          int       `json:"user_id"`
	SubjectID       int       `json:"subject_id"`
	DayOfWeek       int       `json:"day_of_week"`
	StartTime       string    `json:"start_time"` // HH:MM:SS
	DurationMinutes int       `json:"duration_minutes"`
	DifficultyLevel *int      `json:"difficulty_level,omitempty"`
	Title           *string   `json:"title,omitempty"`
	CreatedAt       Timestamp `json:"created_at"`
	UpdatedAt       Timestamp `json:"updated_at"`
}

// StudySessionCreate is the payload of POST /study-sessions. Zero
// DurationMinutes and DifficultyLevel are omitted so the backend defaults apply.
type StudySessionCreate struct {
	SubjectID       int    `json:"subject_id" validate:"required,gt=0"`
	DayOfWeek       int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime       string `json:"start_time" validate:"required,clock"`
	DurationMinutes int    `json:"duration_minutes,omitempty" validate:"omitempty,min=15,max=120"`
	DifficultyLevel int    `json:"difficulty_level,omitempty" validate:"omitempty,min=1,max=4"`
	Title           string `json:"title,omitempty" validate:"max=255"`
}

// StudySessionUpdate is the payload of PUT /study-sessions/:id. Nil fields
// are left unchanged by the backend.
type StudySessionUpdate struct {
	SubjectID       *int    `json:"subject_id,omitempty" validate:"omitempty,gt=0"`
	DayOfWeek       *int    `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	StartTime       *string `json:"start_time,omitempty" validate:"omitempty,clock"`
	DurationMinutes *int    `json:"duration_minutes,omitempty" validate:"omitempty,min=15,max=120"`
	DifficultyLevel *int    `json:"difficulty_level,omitempty" validate:"omitempty,min=1,max=4"`
	Title           *string `json:"title,omitempty" validate:"omitempty,max=255"`
}

// SchedulePreferences is the request of POST /study-sessions/generate-schedule.
// The backend's AI turns it into a proposed weekly schedule.
type SchedulePreferences struct {
	Subjects            []int          `json:"subjects" validate:"required,min=1"`
	SubjectDifficulties map[int]string `json:"subjectDifficulties,omitempty"`
	HoursPerDay         float64        `json:"hoursPerDay" validate:"gt=0,lte=12"`
	StartTime           string         `json:"startTime" validate:"required,clock"`
	EndTime             string         `json:"endTime" validate:"required,clock"`
	Goals               string         `json:"goals,omitempty"`
}

// ScheduledSession is one proposed slot returned by schedule generation. It
// has no identifier until it is created with StudySessionCreate.
type ScheduledSession struct {
	DayOfWeek             int    `json:"day_of_week"`
	SubjectID             int    `json:"subject_id"`
	StartTime             string `json:"start_time"`
	DurationMinutes       int    `json:"duration_minutes"`
	RecommendedDifficulty int    `json:"recommended_difficulty"`
}

// GeneratedSchedule is the response of schedule generation.
type GeneratedSchedule struct {
	Schedule             []ScheduledSession `json:"schedule"`
	AdaptiveDifficulties map[int]int        `json:"adaptive_difficulties"`
}
