package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalMessageLifecycle(t *testing.T) {
	local := NewLocalMessage("u1_u2", "u1", "hola")
	assert.Equal(t, StatusSending, local.Status)
	assert.Empty(t, local.ID, "provisional messages have no server id")

	committed := Message{
		ID:             "m1",
		ConversationID: "u1_u2",
		SenderID:       "u1",
		Text:           "hola",
		CreatedAt:      time.Now(),
	}
	confirmed := local.Confirm(committed)
	assert.Equal(t, StatusSent, confirmed.Status)
	assert.Equal(t, "m1", confirmed.ID)

	failed := local.Fail()
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, StatusSending, local.Status, "failure does not mutate the original value")
}
