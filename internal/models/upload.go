package models

// Homework is an uploaded homework photo with its OCR text.
type Homework struct {
	HomeworkID     int       `json:"homework_id"`
	UserID         int       `json:"user_id"`
	SubjectID      int       `json:"subject_id"`
	Title          string    `json:"title"`
	PhotoPath      string    `json:"photo_path"`
	OCRText        *string   `json:"ocr_text,omitempty"`
	ParentReviewed bool      `json:"parent_reviewed"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
}

// HomeworkUpdate is the payload of PUT /homework/:id.
type HomeworkUpdate struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,max=255"`
	ParentReviewed *bool   `json:"parent_reviewed,omitempty"`
}

// ClassNote is an uploaded class-notes photo with its OCR text.
type ClassNote struct {
	NoteID    int       `json:"note_id"`
	UserID    int       `json:"user_id"`
	SubjectID int       `json:"subject_id"`
	Title     string    `json:"title"`
	PhotoPath string    `json:"photo_path"`
	OCRText   *string   `json:"ocr_text,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// Topic is a subject topic the backend extracted from a class note.
type Topic struct {
	TopicID     int       `json:"topic_id"`
	NoteID      int       `json:"note_id"`
	SubjectID   int       `json:"subject_id"`
	TopicName   string    `json:"topic_name"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt Timestamp `json:"extracted_at"`
}

// ClassNoteWithTopics is a ClassNote together with its extracted topics.
type ClassNoteWithTopics struct {
	ClassNote
	Topics []Topic `json:"topics"`
}

// ClassNoteUpdate is the payload of PUT /class-notes/:id.
type ClassNoteUpdate struct {
	Title *string `json:"title,omitempty" validate:"omitempty,max=255"`
}
