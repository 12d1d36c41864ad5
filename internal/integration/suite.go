// Package integration provides a test suite for exercising HTTP APIs against
// a live Redis instance.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ihttp "github.com/whatsagent/landing/internal/http"
	iredis "github.com/whatsagent/landing/internal/redis"
	"github.com/whatsagent/landing/internal/rand"
	"github.com/whatsagent/landing/internal/stream"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// InitSuite connects to the integration Redis instance and initializes an
// event stream private to the test.
func InitSuite(
	ctx context.Context,
	t *testing.T,
	options ...Option,
) *Suite {
	t.Helper()

	rdb := iredis.InitSuite(ctx, t).Redis

	name, err := rand.GenerateString(8)
	require.Nil(t, err)

	s := &Suite{
		Logger: zap.NewNop(),
		Redis:  rdb,
	}

	for _, option := range options {
		option(s)
	}

	s.Stream, err = stream.Init(ctx, s.Logger, rdb, stream.Config{
		Stream: "test-stream-" + name,
		Group:  "test-group",
	})
	require.Nil(t, err)

	return s
}

type Option func(*Suite)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Suite) { s.Logger = logger }
}

type Suite struct {
	Logger *zap.Logger
	Redis  *redis.Client
	Stream *stream.Client
}

// Request serves an HTTP request on handler. body, when not nil, is JSON
// encoded. A non-empty visitorID is sent as the visitor cookie.
func (s Suite) Request(
	ctx context.Context,
	t *testing.T,
	handler http.Handler,
	method string,
	target string,
	body interface{},
	visitorID string,
) *http.Response {
	t.Helper()

	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		buf := new(bytes.Buffer)
		err := json.NewEncoder(buf).Encode(body)
		require.Nil(t, err)

		req = httptest.NewRequest(method, target, buf)
	}

	req = req.WithContext(ctx)

	if visitorID != "" {
		req.AddCookie(ihttp.VisitorCookie(visitorID, ihttp.CookieOptions{}))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	return rr.Result()
}
