// internal/initdata/user_test.go
package initdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================================
// USER EXTRACTION TESTS
// ==========================================

func TestExtractUser(t *testing.T) {
	t.Run("decoded user object", func(t *testing.T) {
		data := InitData{
			"user": map[string]interface{}{
				"id":            float64(42),
				"first_name":    "Ada",
				"last_name":     "L",
				"username":      "ada42",
				"language_code": "en",
				"is_premium":    true,
			},
		}

		user, err := ExtractUser(data)

		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "Ada", user.FirstName)
		assert.Equal(t, "L", user.LastName)
		assert.Equal(t, "ada42", user.Username)
		assert.Equal(t, "en", user.LanguageCode)
		assert.True(t, user.IsPremium)
	})

	t.Run("JSON string user field", func(t *testing.T) {
		data := InitData{"user": `{"id":42,"first_name":"Ada"}`}

		user, err := ExtractUser(data)

		require.NoError(t, err)
		assert.Equal(t, int64(42), user.ID)
		assert.Equal(t, "Ada", user.FirstName)
	})

	t.Run("premium defaults to false", func(t *testing.T) {
		data := InitData{"user": `{"id":42,"first_name":"Ada"}`}

		user, err := ExtractUser(data)

		require.NoError(t, err)
		assert.False(t, user.IsPremium)
	})

	t.Run("missing user field", func(t *testing.T) {
		_, err := ExtractUser(InitData{"auth_date": "1717243200"})

		assert.ErrorIs(t, err, ErrMissingUserField)
	})

	t.Run("unparsable user field", func(t *testing.T) {
		_, err := ExtractUser(InitData{"user": "not-json"})

		assert.ErrorIs(t, err, ErrMissingUserField)
	})

	t.Run("user without id", func(t *testing.T) {
		_, err := ExtractUser(InitData{"user": `{"first_name":"Ada"}`})

		assert.ErrorIs(t, err, ErrMissingUserField)
	})
}
