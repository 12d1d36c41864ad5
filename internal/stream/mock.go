package stream

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errUnconfigured = errors.New("unconfigured mock call")

// NewClientMock creates a new ClientMock instance. Every written payload,
// acknowledgement and dead letter is recorded. Write, Ack and DeadLetter
// succeed unless configured otherwise, and Claim reports ErrNoPending.
func NewClientMock(options ...ClientMockOption) *ClientMock {
	mock := &ClientMock{}

	for _, option := range options {
		option(mock)
	}

	return mock
}

// ClientMockOption is a function type that may configure a ClientMock
// instance.
type ClientMockOption func(*ClientMock)

// WithWrite returns a ClientMockOption that configures a ClientMock to call fn
// when Write is called. A payload is only recorded if fn succeeds.
func WithWrite(fn writeFunc) ClientMockOption {
	return func(mock *ClientMock) { mock.write = fn }
}

// WithClaim returns a ClientMockOption that configures a ClientMock to call fn
// when Claim is called.
func WithClaim(fn claimFunc) ClientMockOption {
	return func(mock *ClientMock) { mock.claim = fn }
}

// WithRead returns a ClientMockOption that configures a ClientMock to call fn
// when Read is called.
func WithRead(fn readFunc) ClientMockOption {
	return func(mock *ClientMock) { mock.read = fn }
}

// WithAck returns a ClientMockOption that configures a ClientMock to call fn
// when Ack is called.
func WithAck(fn ackFunc) ClientMockOption {
	return func(mock *ClientMock) { mock.ack = fn }
}

// WithDeadLetter returns a ClientMockOption that configures a ClientMock to
// call fn when DeadLetter is called.
func WithDeadLetter(fn deadLetterFunc) ClientMockOption {
	return func(mock *ClientMock) { mock.deadLetter = fn }
}

type (
	writeFunc      func(context.Context, []byte) error
	claimFunc      func(context.Context, time.Duration) (*Message, error)
	readFunc       func(context.Context) (*Message, error)
	ackFunc        func(context.Context, *Message) error
	deadLetterFunc func(context.Context, *Message, string) error
)

// DeadLetter is a message recorded by ClientMock.DeadLetter.
type DeadLetter struct {
	Message Message
	Reason  string
}

// ClientMock provides an implementation for mock stream.Client interactions.
// This is typically used for unit-testing.
type ClientMock struct {
	write      writeFunc
	claim      claimFunc
	read       readFunc
	ack        ackFunc
	deadLetter deadLetterFunc

	mutex       sync.Mutex
	writes      [][]byte
	acks        []string
	deadLetters []DeadLetter
}

// Write calls the function configured with WithWrite.
func (mock *ClientMock) Write(ctx context.Context, b []byte) error {
	if mock.write != nil {
		if err := mock.write(ctx, b); err != nil {
			return err
		}
	}

	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.writes = append(mock.writes, b)
	return nil
}

// Claim calls the function configured with WithClaim.
func (mock *ClientMock) Claim(ctx context.Context, idle time.Duration) (*Message, error) {
	if mock.claim == nil {
		return nil, ErrNoPending
	}
	return mock.claim(ctx, idle)
}

// Read calls the function configured with WithRead.
func (mock *ClientMock) Read(ctx context.Context) (*Message, error) {
	if mock.read == nil {
		return nil, errUnconfigured
	}
	return mock.read(ctx)
}

// Ack calls the function configured with WithAck.
func (mock *ClientMock) Ack(ctx context.Context, m *Message) error {
	if mock.ack != nil {
		if err := mock.ack(ctx, m); err != nil {
			return err
		}
	}

	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.acks = append(mock.acks, m.ID)
	return nil
}

// DeadLetter calls the function configured with WithDeadLetter.
func (mock *ClientMock) DeadLetter(ctx context.Context, m *Message, reason string) error {
	if mock.deadLetter != nil {
		if err := mock.deadLetter(ctx, m, reason); err != nil {
			return err
		}
	}

	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	mock.deadLetters = append(mock.deadLetters, DeadLetter{Message: *m, Reason: reason})
	return nil
}

// Writes retrieves the recorded payloads, in write order.
func (mock *ClientMock) Writes() [][]byte {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	return append([][]byte(nil), mock.writes...)
}

// Acks retrieves the IDs of the acknowledged messages, in order.
func (mock *ClientMock) Acks() []string {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	return append([]string(nil), mock.acks...)
}

// DeadLetters retrieves the dead lettered messages, in order.
func (mock *ClientMock) DeadLetters() []DeadLetter {
	mock.mutex.Lock()
	defer mock.mutex.Unlock()
	return append([]DeadLetter(nil), mock.deadLetters...)
}
