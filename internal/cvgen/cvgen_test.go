package cvgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moverq1337/hireboard/internal/apperrors"
)

func TestUserInfoValidate(t *testing.T) {
	tests := []struct {
		name  string
		info  UserInfo
		field string
	}{
		{name: "ok", info: UserInfo{Name: "Jane Doe", Email: "jane@example.com"}},
		{name: "ok with display name", info: UserInfo{Name: "Jane", Email: "Jane <jane@example.com>"}},
		{name: "no name", info: UserInfo{Email: "jane@example.com"}, field: "name"},
		{name: "blank name", info: UserInfo{Name: "  ", Email: "jane@example.com"}, field: "name"},
		{name: "no email", info: UserInfo{Name: "Jane"}, field: "email"},
		{name: "bad email", info: UserInfo{Name: "Jane", Email: "not-an-email"}, field: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Normalize().Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
			field, ok := apperrors.Field(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestNormalizeTrims(t *testing.T) {
	got := UserInfo{Name: " Jane ", Skills: "\tGo, SQL\n", AdditionalInfo: " "}.Normalize()
	assert.Equal(t, UserInfo{Name: "Jane", Skills: "Go, SQL"}, got)
}
