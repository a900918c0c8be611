package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestTraceServiceRecordsAndForwards(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()

	traceLog := logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "trace.log"))
	forwarder := &fakePublisher{}
	svc := NewTraceService(pubSub, traceLog, forwarder, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	svc.Record(ctx, events.ToolTrace{SessionID: "s1", Tool: "search_projects", Query: "Pangasinan", Results: 4})
	svc.Record(ctx, events.ToolTrace{SessionID: "s1", Tool: "search_news", Err: errors.New("timeout")})

	require.Eventually(t, func() bool { return forwarder.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		entries, err := svc.Recent("", 10, 0)
		return err == nil && len(entries) == 2
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := svc.Recent("", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "search_news", entries[0].Message, "newest first")
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, traceModule, entries[1].Module)
	assert.EqualValues(t, 4, entries[1].Details["results"])

	warns, err := svc.Recent("WARN", 10, 0)
	require.NoError(t, err)
	assert.Len(t, warns, 1)
}

func TestTraceServiceWithoutForwarder(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pubSub.Close()

	traceLog := logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "trace.log"))
	svc := NewTraceService(pubSub, traceLog, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	svc.Record(ctx, events.ToolTrace{Tool: "search_projects"})
	require.Eventually(t, func() bool {
		entries, _ := svc.Recent("", 0, -1)
		return len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
