package kinderpedia

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(timeout time.Duration) *circuitBreaker {
	return newCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
	})
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := testBreaker(time.Minute)

	for i := 0; i < 2; i++ {
		cb.recordFailure()
		assert.NoError(t, cb.allow())
	}

	cb.recordFailure()
	assert.ErrorIs(t, cb.allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(time.Minute)

	cb.recordFailure()
	cb.recordFailure()
	cb.recordSuccess()

	cb.recordFailure()
	cb.recordFailure()
	assert.NoError(t, cb.allow())
}

func TestCircuitBreaker_HalfOpenProbing(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.recordFailure()
	cb.recordFailure()
	cb.recordFailure()
	require.ErrorIs(t, cb.allow(), ErrCircuitOpen)

	time.Sleep(15 * time.Millisecond)

	// timeout elapsed: one probe is allowed
	assert.NoError(t, cb.allow())

	// a probe failure trips the circuit again
	cb.recordFailure()
	assert.ErrorIs(t, cb.allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.recordFailure()
	cb.recordFailure()
	cb.recordFailure()
	time.Sleep(15 * time.Millisecond)
	require.NoError(t, cb.allow())

	cb.recordSuccess()
	cb.recordSuccess()

	// closed again: failures below the threshold do not open it
	cb.recordFailure()
	assert.NoError(t, cb.allow())
}
