package models

// PromptTemplate is a backend-stored AI prompt. The client treats
// PromptTemplate as an opaque string and never renders it.
type PromptTemplate struct {
	TemplateID     int     `json:"template_id"`
	TemplateName   string  `json:"template_name"`
	TemplateType   string  `json:"template_type"`
	PromptTemplate string  `json:"prompt_template"`
	Description    *string `json:"description,omitempty"`
	IsActive       bool    `json:"is_active"`
	IsSystem       bool    `json:"is_system"`
}

// PromptTemplateCreate is the payload of POST /prompt-templates.
type PromptTemplateCreate struct {
	TemplateName   string `json:"template_name" validate:"required"`
	TemplateType   string `json:"template_type" validate:"required"`
	PromptTemplate string `json:"prompt_template" validate:"required"`
	Description    string `json:"description,omitempty"`
	IsActive       bool   `json:"is_active"`
}

// PromptTemplateUpdate is the payload of PUT /prompt-templates/:id.
type PromptTemplateUpdate struct {
	TemplateName   *string `json:"template_name,omitempty"`
	TemplateType   *string `json:"template_type,omitempty"`
	PromptTemplate *string `json:"prompt_template,omitempty"`
	Description    *string `json:"description,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// PromptPreview is the response of POST /prompt-templates/:id/preview.
type PromptPreview struct {
	TemplateID     int               `json:"template_id"`
	TemplateName   string            `json:"template_name"`
	RenderedPrompt string            `json:"rendered_prompt"`
	VariablesUsed  map[string]string `json:"variables_used"`
}

// StudentProfile describes a student for personalised test generation.
type StudentProfile struct {
	ProfileID              int       `json:"profile_id"`
	UserID                 int       `json:"user_id"`
	Age                    *int      `json:"age,omitempty"`
	GradeLevel             *string   `json:"grade_level,omitempty"`
	SchoolName             *string   `json:"school_name,omitempty"`
	MathLevel              *string   `json:"math_level,omitempty"`
	EnglishLevel           *string   `json:"english_level,omitempty"`
	ChineseLevel           *string   `json:"chinese_level,omitempty"`
	Strengths              []string  `json:"strengths,omitempty"`
	Weaknesses             []string  `json:"weaknesses,omitempty"`
	LearningPace           *string   `json:"learning_pace,omitempty"`
	PreferredQuestionTypes []string  `json:"preferred_question_types,omitempty"`
	Notes                  *string   `json:"notes,omitempty"`
	CreatedAt              Timestamp `json:"created_at"`
	UpdatedAt              Timestamp `json:"updated_at"`
}
