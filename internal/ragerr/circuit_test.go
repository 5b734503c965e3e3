package ragerr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("embedding-backend",
		WithMaxFailures(3),
		WithResetTimeout(1*time.Second),
	)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error {
			return errors.New("backend unreachable")
		})
	}

	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error {
		return nil
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("embedding-backend",
		WithMaxFailures(2),
		WithResetTimeout(50*time.Millisecond),
	)

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error {
			return errors.New("backend unreachable")
		})
	}
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(func() error {
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecuteWithResult_FallsBackWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("embedding-backend", WithMaxFailures(1))

	_ = cb.Execute(func() error { return errors.New("down") })
	assert.Equal(t, StateOpen, cb.State())

	result, err := ExecuteWithResult(cb,
		func() ([]float32, error) {
			t.Fatal("fn should not be called while circuit is open")
			return nil, nil
		},
		func() ([]float32, error) {
			return []float32{0, 0, 0}, nil
		},
	)

	assert.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, result)
}
