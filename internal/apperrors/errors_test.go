package apperrors

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationCarriesField(t *testing.T) {
	err := Validation("status", "must be one of pending, reviewed")

	require.Error(t, err)
	assert.True(t, Is(err, ErrValidation))
	assert.Equal(t, "status: must be one of pending, reviewed", err.Error())

	field, ok := Field(Wrap(err, "update status"))
	require.True(t, ok)
	assert.Equal(t, "status", field)
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"nil", nil, KindNone},
		{"validation", Validation("id", "bad"), KindValidation},
		{"not found", NotFound("job"), KindNotFound},
		{"forbidden", Forbidden("not your job"), KindAuthorization},
		{"duplicate wrapped", Wrap(ErrDuplicateApplication, "create"), KindDuplicate},
		{"closed job", Wrapf(ErrJobNotAccepting, "job %s", "x"), KindJobNotAccepting},
		{"media type", Wrap(ErrUnsupportedMediaType, "image/png"), KindUnsupportedMedia},
		{"scoring", Wrap(ErrScoringUnavailable, "timeout"), KindScoringUnavailable},
		{"cv generation", Mark(New("model returned no cv"), ErrCVGenerationFailed), KindCVGeneration},
		{"extraction", Wrap(ErrExtractionDegraded, "corrupt pdf"), KindExtraction},
		{"unknown", sql.ErrConnDone, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NotFound("application")
	assert.Equal(t, "application not found", err.Error())
	assert.False(t, Is(err, ErrValidation))
}
