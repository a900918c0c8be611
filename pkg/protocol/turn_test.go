package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTurn(t *testing.T) {
	bbox := BBox{{119.5, 15.8}, {120.5, 16.5}}

	tests := []struct {
		name    string
		events  []Event
		wantErr bool
	}{
		{
			name: "full turn with news after done",
			events: []Event{
				StatusEvent{}, ToolEvent{}, ProjectsEvent{}, MapBoundsEvent{BBox: bbox},
				MessageEvent{Content: "a"}, MessageEvent{Content: "b"}, MessageEvent{Done: true},
				NewsEvent{},
			},
		},
		{
			name:   "news before message",
			events: []Event{NewsEvent{}, MessageEvent{Done: true}},
		},
		{
			name:   "error replaces message run",
			events: []Event{StatusEvent{}, ErrorEvent{Content: "x"}},
		},
		{
			name:    "no terminal",
			events:  []Event{StatusEvent{}, MessageEvent{Content: "a"}},
			wantErr: true,
		},
		{
			name:    "two projects",
			events:  []Event{ProjectsEvent{}, ProjectsEvent{}, MessageEvent{Done: true}},
			wantErr: true,
		},
		{
			name:    "status after terminal",
			events:  []Event{MessageEvent{Done: true}, StatusEvent{}},
			wantErr: true,
		},
		{
			name:    "two terminals",
			events:  []Event{MessageEvent{Done: true}, ErrorEvent{}},
			wantErr: true,
		},
		{
			name:    "error after fragments",
			events:  []Event{MessageEvent{Content: "partial"}, ErrorEvent{Content: "x"}},
			wantErr: true,
		},
		{
			name:    "two news",
			events:  []Event{NewsEvent{}, MessageEvent{Done: true}, NewsEvent{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.events)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrIllegalSequence), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTurnEmitterEnforcesContract(t *testing.T) {
	var sent []Event
	em := NewTurnEmitter(func(ev Event) error {
		sent = append(sent, ev)
		return nil
	})

	require.NoError(t, em.Status("Processing your question..."))
	require.NoError(t, em.Projects([]Project{{ID: "P1"}}))
	assert.ErrorIs(t, em.Projects(nil), ErrIllegalSequence)
	assert.True(t, em.EmittedProjects())

	require.NoError(t, em.Fragment("Found 1 project"))
	require.NoError(t, em.Done(""))
	assert.True(t, em.Terminated())

	assert.ErrorIs(t, em.Fragment("late"), ErrIllegalSequence)
	assert.ErrorIs(t, em.Fail("late"), ErrIllegalSequence)
	require.NoError(t, em.News(nil))

	assert.NoError(t, ValidateTurn(sent))
	assert.Len(t, sent, 5)
}

func TestTurnEmitterStreamingEndsWithDone(t *testing.T) {
	em := NewTurnEmitter(func(Event) error { return nil })

	require.NoError(t, em.Status("Processing your question..."))
	assert.False(t, em.Streaming())
	require.NoError(t, em.Fragment("Found 3 "))
	assert.True(t, em.Streaming())

	assert.ErrorIs(t, em.Fail("backend down"), ErrIllegalSequence)
	assert.False(t, em.Terminated())
	require.NoError(t, em.Done("\n\nbackend down"))
}

func TestTurnEmitterDoesNotRecordFailedWrites(t *testing.T) {
	fail := true
	em := NewTurnEmitter(func(Event) error {
		if fail {
			return errors.New("connection gone")
		}
		return nil
	})
	assert.Error(t, em.Done(""))
	assert.False(t, em.Terminated())

	fail = false
	assert.NoError(t, em.Done(""))
}
