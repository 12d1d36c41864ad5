package healthz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, check *HTTP) int {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	check.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestNewHTTP(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, serve(t, NewHTTP()))
}

func TestHealthy(t *testing.T) {
	check := NewHTTP()
	check.Healthy()
	require.Equal(t, http.StatusOK, serve(t, check))

	check.Sick()
	require.Equal(t, http.StatusServiceUnavailable, serve(t, check))
}

func TestChecks(t *testing.T) {
	var redisErr error
	check := NewHTTP(
		func(context.Context) error { return nil },
		func(context.Context) error { return redisErr },
	)
	check.Healthy()
	require.Equal(t, http.StatusOK, serve(t, check))

	redisErr = errors.New("redis unreachable")
	require.Equal(t, http.StatusServiceUnavailable, serve(t, check))
}
