package validation_test

import (
	"strings"
	"testing"

	"chatnet/pkg/validation"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	assert.NoError(t, validation.ValidateUserID("alice"))
	assert.NoError(t, validation.ValidateUserID("user_42-x"))

	assert.Error(t, validation.ValidateUserID(""))
	assert.Error(t, validation.ValidateUserID("has spaces"))
	assert.Error(t, validation.ValidateUserID("email@example.com"))
	assert.Error(t, validation.ValidateUserID(strings.Repeat("a", 101)))
}

func TestValidateMembers(t *testing.T) {
	assert.NoError(t, validation.ValidateMembers([]string{"alice", "bob"}))

	assert.Error(t, validation.ValidateMembers(nil))
	assert.Error(t, validation.ValidateMembers([]string{}))
	assert.Error(t, validation.ValidateMembers([]string{"alice", ""}))

	many := make([]string, 101)
	for i := range many {
		many[i] = "user"
	}
	assert.Error(t, validation.ValidateMembers(many))
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, validation.ValidateMessageContent("hello"))
	assert.NoError(t, validation.ValidateMessageContent(strings.Repeat("x", 4000)))

	assert.Error(t, validation.ValidateMessageContent(""))
	assert.Error(t, validation.ValidateMessageContent("   \t\n"))
	assert.Error(t, validation.ValidateMessageContent(strings.Repeat("x", 4001)))
	assert.Error(t, validation.ValidateMessageContent("bad\xff\xfe"))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, validation.ValidateUsername("alice"))
	assert.NoError(t, validation.ValidateUsername("  alice  "), "whitespace is trimmed")

	assert.Error(t, validation.ValidateUsername(""))
	assert.Error(t, validation.ValidateUsername("ab"))
	assert.Error(t, validation.ValidateUsername(strings.Repeat("a", 51)))
	assert.Error(t, validation.ValidateUsername("no spaces allowed"))
}

func TestValidateNonEmptyString(t *testing.T) {
	assert.NoError(t, validation.ValidateNonEmptyString("x", "field"))
	assert.Error(t, validation.ValidateNonEmptyString("  ", "field"))
}
