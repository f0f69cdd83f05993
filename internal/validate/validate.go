// Package validate is the input-shape validator used by the websocket handlers.
// It knows nothing about rooms or connections; it only answers whether a field
// is structurally acceptable.
package validate

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/bubble-chat/server/internal/domain"
)

var validate = validator.New()

// MaxMessageLen is the default ceiling on message content, in runes.
const MaxMessageLen = 3000

// Categories a room may declare. Fixed enum; anything else is rejected.
var ValidCategories = []string{
	"family",
	"friends",
	"school",
	"work",
	"relationships",
	"health",
	"others",
}

// RoomID accepts only UUID4 strings.
func RoomID(id string) bool {
	return validate.Var(id, "required,uuid4") == nil
}

// UserLimit accepts room capacities between 2 and 100 inclusive.
func UserLimit(n int) bool {
	return n >= domain.MinUserLimit && n <= domain.MaxUserLimit
}

// Categories accepts a non-empty list drawn from ValidCategories.
func Categories(categories []string) bool {
	if len(categories) == 0 {
		return false
	}
	return lo.Every(ValidCategories, categories)
}

// Message accepts non-empty content up to MaxMessageLen runes.
func Message(s string) bool {
	return s != "" && utf8.RuneCountInString(s) <= MaxMessageLen
}

// Str accepts any non-blank string.
func Str(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ClaimToken accepts only UUID-shaped reconnect secrets.
func ClaimToken(token string) bool {
	return validate.Var(token, "required,uuid4") == nil
}
