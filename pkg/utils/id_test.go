package utils_test

import (
	"strings"
	"testing"

	"chatnet/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSessionID(t *testing.T) {
	id := utils.GenerateSessionID()
	assert.True(t, strings.HasPrefix(id, "session_"))

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := utils.GenerateSessionID()
		assert.False(t, seen[id], "session ids must not repeat")
		seen[id] = true
	}
}

func TestGenerateRequestID(t *testing.T) {
	id := utils.GenerateRequestID()
	assert.True(t, strings.HasPrefix(id, "req_"))
	assert.NotEqual(t, id, utils.GenerateRequestID())
}

func TestGenerateID_Prefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(utils.GenerateID("lock"), "lock_"))
}
