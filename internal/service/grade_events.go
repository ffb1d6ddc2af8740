package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventGradeUpdated is emitted after a grade is committed to a submission.
const EventGradeUpdated = "grade.updated"

// GradeEvent describes a committed grade change.
type GradeEvent struct {
	Type         string    `json:"type"`
	Source       string    `json:"source"`
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	TeacherID    uint      `json:"teacher_id"`
	SchoolID     uint      `json:"school_id"`
	Percentage   float64   `json:"percentage"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// GradeEventPublisher announces grade changes to other nodes.
type GradeEventPublisher interface {
	Publish(ctx context.Context, event GradeEvent) error
}

// GradeEventBus fans grade events out over Redis pub/sub and NATS and feeds events
// published by other nodes to a handler.
type GradeEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewGradeEventBus builds the bus. Either transport may be nil; an empty channel base disables both.
func NewGradeEventBus(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) *GradeEventBus {
	bus := &GradeEventBus{
		redis:  redisClient,
		nats:   natsConn,
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "grade_event_bus").Logger(),
	}
	if channelBase != "" {
		bus.redisChannel = channelBase + ":grades"
		bus.natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".grades"
	}
	return bus
}

// Publish stamps the event with this node's id and sends it on every configured transport.
func (b *GradeEventBus) Publish(ctx context.Context, event GradeEvent) error {
	if event.Type == "" {
		event.Type = EventGradeUpdated
	}
	event.Source = b.nodeID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

// Start consumes events from other nodes until ctx is done.
func (b *GradeEventBus) Start(ctx context.Context, handle func(context.Context, GradeEvent)) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx, handle)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx, handle)
	}
}

func (b *GradeEventBus) consumeRedis(ctx context.Context, handle func(context.Context, GradeEvent)) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("grade event redis subscription closed")
			return
		}
		b.dispatch(ctx, []byte(msg.Payload), handle)
	}
}

func (b *GradeEventBus) consumeNATS(ctx context.Context, handle func(context.Context, GradeEvent)) {
	sub, err := b.nats.QueueSubscribe(b.natsSubject, "sacel-grades", func(msg *nats.Msg) {
		b.dispatch(ctx, msg.Data, handle)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats grade subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain grade nats subscription")
		}
	}()
}

func (b *GradeEventBus) dispatch(ctx context.Context, data []byte, handle func(context.Context, GradeEvent)) {
	var event GradeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid grade event")
		return
	}
	if event.Source == b.nodeID {
		return
	}
	handle(ctx, event)
}
