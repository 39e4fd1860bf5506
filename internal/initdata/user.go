package initdata

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingUserField = errors.New("MISSING_USER_FIELD")

// UserIdentity is the normalized identity extracted from a validated payload.
// Immutable once extracted.
type UserIdentity struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	LanguageCode string `json:"languageCode"`
	IsPremium    bool   `json:"isPremium"`
}

type rawUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
	IsPremium    bool   `json:"is_premium"`
}

// ExtractUser projects a validated payload into a UserIdentity. The payload
// must carry a user field (object or JSON-encoded object) with a numeric id.
func ExtractUser(data InitData) (*UserIdentity, error) {
	field, ok := data["user"]
	if !ok {
		return nil, ErrMissingUserField
	}

	var userJSON []byte
	switch v := field.(type) {
	case string:
		userJSON = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingUserField, err)
		}
		userJSON = encoded
	}

	var user rawUser
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingUserField, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user id missing", ErrMissingUserField)
	}

	return &UserIdentity{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LanguageCode,
		IsPremium:    user.IsPremium,
	}, nil
}
