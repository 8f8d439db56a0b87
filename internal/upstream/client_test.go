package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCallWrapsBreakerTripAsNetworkError pins the error handling
// design's "breaker trips are a kind: network UpstreamError,
// recoverable the same way exhausted retries are" rule: once the
// circuit opens, gobreaker's bare ErrOpenState must not leak past
// this package.
func TestCallWrapsBreakerTripAsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL
	cfg.StatsRetries = 0
	cfg.RequestTimeout = time.Second
	client := NewClient(cfg)

	// Five consecutive failures trip the breaker (ReadyToTrip at
	// ConsecutiveFailures >= 5).
	for i := 0; i < 5; i++ {
		_, err := client.FetchAddressStat(context.Background(), "0xabc", 30)
		require.Error(t, err)
	}

	_, err := client.FetchAddressStat(context.Background(), "0xabc", 30)
	require.Error(t, err)

	var upErr *Error
	require.True(t, errors.As(err, &upErr), "expected *upstream.Error, got %T: %v", err, err)
	assert.Equal(t, KindNetwork, upErr.Kind)
}
