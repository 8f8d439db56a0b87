package persistence

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Op: "replace_period", Cause: cause}

	assert.Contains(t, err.Error(), "replace_period")
	assert.True(t, errors.Is(err, cause))
}

func TestHealthCheckStructure(t *testing.T) {
	hc := HealthCheck{
		Healthy: true,
		Errors:  []string{},
		ConnectionPool: map[string]int{
			"open":   5,
			"idle":   3,
			"in_use": 2,
		},
		LastCheck:      time.Now(),
		ResponseTimeMS: 12,
	}

	assert.True(t, hc.Healthy)
	assert.Empty(t, hc.Errors)
	assert.Contains(t, hc.ConnectionPool, "open")
	assert.GreaterOrEqual(t, hc.ResponseTimeMS, int64(0))
}
