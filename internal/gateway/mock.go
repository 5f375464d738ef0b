package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// PayoutGateway represents the external payment gateway interface.
type PayoutGateway interface {
	// SendPayout sends a payout to an external destination.
	// Returns a gateway reference ID and an error if the payout failed.
	SendPayout(ctx context.Context, destination string, amount int64) (string, error)
}

// MockGateway simulates an external payment gateway. Delay and failure
// rate are tunable so tests can run with zero latency and deterministic
// outcomes.
type MockGateway struct {
	// FailureRate is the probability of failure (0.0 to 1.0).
	FailureRate float64
	// MaxDelay caps the simulated network latency per call.
	MaxDelay time.Duration
}

// NewMockGateway creates a MockGateway with default settings: ~10% failures
// and up to two seconds of latency.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		FailureRate: 0.1,
		MaxDelay:    2 * time.Second,
	}
}

// SendPayout simulates sending a payout to an external gateway.
// It sleeps up to MaxDelay to simulate network latency, then randomly
// fails based on FailureRate. Returns a fake reference ID on success.
func (g *MockGateway) SendPayout(ctx context.Context, destination string, amount int64) (string, error) {
	if g.MaxDelay > 0 {
		delay := time.Duration(rand.Int63n(int64(g.MaxDelay)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("gateway call canceled: %w", ctx.Err())
		}
	}

	if rand.Float64() < g.FailureRate {
		return "", fmt.Errorf("gateway temporarily unavailable")
	}

	// Format: MOCK-YYYYMMDD-HHMMSS-XXXXX
	ref := fmt.Sprintf("MOCK-%s-%05d", time.Now().Format("20060102-150405"), rand.Intn(100000))
	return ref, nil
}
