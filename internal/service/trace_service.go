package service

import (
	"context"
	"fmt"
	"time"

	"floodguard-be/internal/pkg/logger"
	"floodguard-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	traceModule = "ToolTrace"
	TraceTopic  = "tool_traces"
)

// EventPublisher forwards events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ITraceService interface {
	Record(ctx context.Context, trace events.ToolTrace)
	Run(ctx context.Context) error
	Recent(level string, limit, offset int) ([]logger.LogEntry, error)
}

type traceService struct {
	pubSub    *gochannel.GoChannel
	traceLog  logger.ILogger
	forwarder EventPublisher
	log       logger.ILogger
}

// NewTraceService writes tool traces to traceLog and, when forwarder is set,
// mirrors them to it. Record never blocks a chat turn on either sink.
func NewTraceService(pubSub *gochannel.GoChannel, traceLog logger.ILogger, forwarder EventPublisher, log logger.ILogger) ITraceService {
	return &traceService{
		pubSub:    pubSub,
		traceLog:  traceLog,
		forwarder: forwarder,
		log:       log,
	}
}

func (s *traceService) Record(ctx context.Context, trace events.ToolTrace) {
	payload, err := events.Marshal(trace.Event())
	if err != nil {
		s.log.Warn(traceModule, "Failed to encode trace", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.pubSub.Publish(TraceTopic, msg); err != nil {
		s.log.Warn(traceModule, "Failed to enqueue trace", map[string]interface{}{"error": err.Error()})
	}
}

func (s *traceService) Run(ctx context.Context) error {
	messages, err := s.pubSub.Subscribe(ctx, TraceTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (s *traceService) processMessage(ctx context.Context, msg *message.Message) {
	event, err := events.Unmarshal(msg.Payload)
	if err != nil {
		s.log.Error(traceModule, "Dropping malformed trace", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	data := event.Payload()
	level := s.traceLog.Info
	if _, failed := data["error"]; failed {
		level = s.traceLog.Warn
	}
	level(traceModule, fmt.Sprintf("%v", data["tool"]), data)

	if s.forwarder != nil {
		fctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := s.forwarder.Publish(fctx, event); err != nil {
			s.log.Warn(traceModule, "Failed to forward trace", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}
	msg.Ack()
}

func (s *traceService) Recent(level string, limit, offset int) ([]logger.LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.traceLog.GetLogs(level, limit, offset)
}
