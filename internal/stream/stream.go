// Package stream provides a Redis Streams consumer group client carrying the
// checkout service events. Messages that keep failing are moved to a dead
// letter stream next to the event stream.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnexpectedStreamCount  = errors.New("unexpected stream count")
	ErrUnexpectedMessageCount = errors.New("unexpected message count")
	ErrNoPending              = errors.New("no pending messages")

	errInvalidPayload = errors.New("invalid payload")
	errBusyGroup      = errors.New("BUSYGROUP Consumer Group name already exists")
)

const (
	// DefaultStream is the stream shared by the checkout service processes.
	DefaultStream = "checkoutEventStream"

	// DefaultMaxLen is the approximate number of entries a stream keeps when
	// Config.MaxLen is zero.
	DefaultMaxLen = 20000

	start = "0"
)

// Config configures a Client.
type Config struct {
	// Stream is the name of the event stream.
	Stream string
	// Group is the consumer group. Clients of the same group form a
	// round-robin queue.
	Group string
	// MaxLen caps the event and dead letter streams, approximately.
	MaxLen int64
}

// DeadLetterStream names the stream dead letters of stream are written to.
func DeadLetterStream(stream string) string {
	return stream + ":dead"
}

// Init intializes a Client of the stream and group cfg names.
func Init(ctx context.Context, logger *zap.Logger, rdb *redis.Client, cfg Config) (*Client, error) {
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, fmt.Errorf("initializing stream; stream: %q, group: %q: %w", cfg.Stream, cfg.Group, errInvalidConfig)
	}
	if cfg.MaxLen <= 0 {
		cfg.MaxLen = DefaultMaxLen
	}

	err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, start).Err()
	if err != nil && !(err.Error() == errBusyGroup.Error()) {
		return nil, fmt.Errorf("initializing stream; error: %w", err)
	}

	return &Client{
		logger:     logger,
		rdb:        rdb,
		stream:     cfg.Stream,
		deadLetter: DeadLetterStream(cfg.Stream),
		group:      cfg.Group,
		consumer:   uuid.New().String(),
		maxLen:     cfg.MaxLen,
		mutex:      new(sync.Mutex),
		claimStart: "0-0",
	}, nil
}

var errInvalidConfig = errors.New("stream and group are required")

// Client is a persistent streaming client.
type Client struct {
	logger *zap.Logger
	rdb    *redis.Client

	stream     string
	deadLetter string
	group      string
	consumer   string
	maxLen     int64

	mutex      *sync.Mutex
	claimStart string
}

// Write writes b to the Client's persistent stream.
func (c Client) Write(ctx context.Context, b []byte) error {
	c.logger.Debug("write stream", zap.String("stream", c.stream), zap.ByteString("bytes", b))

	args := &redis.XAddArgs{
		Stream:       c.stream,
		MaxLenApprox: c.maxLen,
		ID:           "*",
		Values:       map[string]interface{}{"payload": b},
	}
	if err := c.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("write stream; error: %w", err)
	}

	return nil
}

// Claim takes over a message of the group that has not been acknowledged for
// the idle duration. The returned Message counts every delivery so far,
// including this one.
func (c *Client) Claim(ctx context.Context, idle time.Duration) (*Message, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	args := &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  idle,
		Count:    1,
		Start:    c.claimStart,
	}
	messages, start, err := c.rdb.XAutoClaim(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("auto claim; error: %w", err)
	}

	c.claimStart = start

	if len(messages) == 0 {
		return nil, ErrNoPending
	}

	m, err := c.extractMessage(messages)
	if err != nil {
		return nil, err
	}

	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  m.ID,
		End:    m.ID,
		Count:  1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("pending deliveries; id: %s, error: %w", m.ID, err)
	}
	if len(pending) == 1 {
		m.Deliveries = pending[0].RetryCount
	}
	return m, nil
}

// Read reads a new message from the persistent stream.
func (c Client) Read(ctx context.Context) (*Message, error) {
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    24 * time.Hour,
		NoAck:    false,
	}

read:
	streams, err := c.rdb.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		goto read
	}
	if err != nil {
		return nil, fmt.Errorf("read stream; error: %w", err)
	}

	if len(streams) != 1 {
		return nil, fmt.Errorf(
			"read stream; n: %d, error: %w",
			len(streams),
			ErrUnexpectedStreamCount,
		)
	}

	m, err := c.extractMessage(streams[0].Messages)
	if err != nil {
		return nil, err
	}
	m.Deliveries = 1

	c.logger.Debug(
		"read stream",
		zap.String("message-id", m.ID),
		zap.String("group", c.group),
		zap.String("consumer", c.consumer),
		zap.ByteString("payload", m.Payload),
	)
	return m, nil
}

// Ack acknowledges the passed Message. A Message should be acknowledged when
// it has been processed, and it is acceptable for the persistent stream to
// discard the contents.
func (c Client) Ack(ctx context.Context, m *Message) error {
	return c.rdb.XAck(ctx, c.stream, c.group, m.ID).Err()
}

// DeadLetter copies m and the reason it failed to the dead letter stream and
// acknowledges m, in one transaction.
func (c Client) DeadLetter(ctx context.Context, m *Message, reason string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream:       c.deadLetter,
			MaxLenApprox: c.maxLen,
			ID:           "*",
			Values: map[string]interface{}{
				"payload":    m.Payload,
				"message-id": m.ID,
				"deliveries": m.Deliveries,
				"reason":     reason,
			},
		})
		pipe.XAck(ctx, c.stream, c.group, m.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("dead letter; id: %s, error: %w", m.ID, err)
	}

	c.logger.Warn(
		"dead lettered stream message",
		zap.String("message-id", m.ID),
		zap.String("stream", c.deadLetter),
		zap.Int64("deliveries", m.Deliveries),
		zap.String("reason", reason),
	)
	return nil
}

func (c Client) extractMessage(messages []redis.XMessage) (*Message, error) {
	if len(messages) != 1 {
		return nil, fmt.Errorf(
			"unexpected stream message count; n: %d, error: %w",
			len(messages),
			ErrUnexpectedMessageCount,
		)
	}

	m := messages[0]

	str, ok := m.Values["payload"].(string)
	if !ok {
		return nil, errInvalidPayload
	}

	return &Message{
		ID:      m.ID,
		Payload: []byte(str),
	}, nil
}

// Message is a single entry of the stream.
type Message struct {
	ID      string
	Payload []byte

	// Deliveries is the number of times the message has been handed to a
	// consumer of the group.
	Deliveries int64
}
