package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/kongtze/internal/models"
)

func TestStruct_UserLogin(t *testing.T) {
	tests := []struct {
		name       string
		in         models.UserLogin
		wantFields []string
	}{
		{"parent", models.UserLogin{Email: "mum@example.com", Password: "hunter22"}, nil},
		{"student", models.UserLogin{PIN: "1234"}, nil},
		{"short pin", models.UserLogin{PIN: "12"}, []string{"pin"}},
		{"letters in pin", models.UserLogin{PIN: "12a4"}, []string{"pin"}},
		{"empty", models.UserLogin{}, []string{"email", "password"}},
		{"email without password", models.UserLogin{Email: "mum@example.com"}, []string{"password"}},
		{"bad email", models.UserLogin{Email: "not-an-email", Password: "hunter22"}, []string{"email"}},
		{"both modes", models.UserLogin{Email: "mum@example.com", Password: "hunter22", PIN: "1234"}, []string{"pin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
			for _, f := range tt.wantFields {
				_, ok := verr.Field(f)
				assert.True(t, ok, "missing error for %q in %v", f, verr.Fields)
			}
		})
	}
}

func TestStruct_Messages(t *testing.T) {
	err := Struct(models.UserLogin{PIN: "12"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	msg, ok := verr.Field("pin")
	require.True(t, ok)
	assert.Equal(t, "pin must be exactly 4 digits", msg)
	assert.Contains(t, err.Error(), "pin must be exactly 4 digits")
}

func TestStruct_StudySessionCreate(t *testing.T) {
	tests := []struct {
		name    string
		in      models.StudySessionCreate
		wantErr bool
	}{
		{"valid", models.StudySessionCreate{SubjectID: 2, DayOfWeek: 0, StartTime: "09:00:00", DurationMinutes: 30}, false},
		{"backend default duration", models.StudySessionCreate{SubjectID: 2, DayOfWeek: 6, StartTime: "18:30"}, false},
		{"day out of range", models.StudySessionCreate{SubjectID: 2, DayOfWeek: 7, StartTime: "09:00"}, true},
		{"too short", models.StudySessionCreate{SubjectID: 2, StartTime: "09:00", DurationMinutes: 10}, true},
		{"bad clock", models.StudySessionCreate{SubjectID: 2, StartTime: "25:00"}, true},
		{"no subject", models.StudySessionCreate{StartTime: "09:00"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStruct_GiftCreate(t *testing.T) {
	err := Struct(models.GiftCreate{Name: "Sticker", Tier: "platinum", Probability: 1.5})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, ok := verr.Field("tier")
	assert.True(t, ok)
	_, ok = verr.Field("probability")
	assert.True(t, ok)
}
