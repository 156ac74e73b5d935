package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemReadState(t *testing.T) {
	item := NewItem("alice", "https://example.com")
	assert.False(t, item.IsRead())

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*60*60))
	item.MarkRead(at)
	require.True(t, item.IsRead())
	assert.Equal(t, time.UTC, item.ReadAt.Location())
	assert.True(t, item.ReadAt.Equal(at))
}

func TestItemJSONShape(t *testing.T) {
	data, err := json.Marshal(NewItem("bob", "watch this"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"author":"bob","content":"watch this","read_at":null}`, string(data))
}
