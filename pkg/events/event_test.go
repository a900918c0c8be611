package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolTraceEnvelope(t *testing.T) {
	at := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	trace := ToolTrace{
		SessionID: "s1",
		Tool:      "search_projects",
		Query:     "Pangasinan 2025",
		Params:    map[string]interface{}{"province": "PANGASINAN"},
		Results:   12,
		Duration:  1500 * time.Millisecond,
		Err:       errors.New("slow"),
		At:        at,
	}

	raw, err := Marshal(trace.Event())
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeToolTrace, got.EventType())
	assert.True(t, at.Equal(got.Timestamp()))
	assert.Equal(t, "search_projects", got.Payload()["tool"])
	assert.EqualValues(t, 12, got.Payload()["results"])
	assert.EqualValues(t, 1500, got.Payload()["duration_ms"])
	assert.Equal(t, "slow", got.Payload()["error"])
}

func TestUnmarshalRejectsUntyped(t *testing.T) {
	_, err := Unmarshal([]byte(`{"data":{}}`))
	assert.Error(t, err)

	_, err = Unmarshal([]byte(`nope`))
	assert.Error(t, err)

	got, err := Unmarshal([]byte(`{"type":"x"}`))
	require.NoError(t, err)
	assert.NotNil(t, got.Payload())
}
