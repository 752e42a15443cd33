package session

import (
	"sync"
	"testing"
	"time"

	"github.com/kvasnica/wspydrone/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestState_Lifecycle(t *testing.T) {
	s := NewState(500 * time.Millisecond)
	assert.False(t, s.Running())
	assert.Equal(t, 500*time.Millisecond, s.SamplingPeriod())

	s.Open()
	assert.True(t, s.Running())

	s.SetSamplingPeriod(2 * time.Second)
	assert.Equal(t, 2*time.Second, s.SamplingPeriod())

	s.Close()
	assert.False(t, s.Running())
	assert.Equal(t, 2*time.Second, s.SamplingPeriod(), "close alone keeps the period")

	s.Reset()
	assert.False(t, s.Running())
	assert.Equal(t, 500*time.Millisecond, s.SamplingPeriod())
}

func TestState_SamplingPeriodIsClamped(t *testing.T) {
	s := NewState(time.Millisecond)
	assert.Equal(t, domain.MinSamplingPeriod, s.SamplingPeriod())

	s.SetSamplingPeriod(time.Hour)
	assert.Equal(t, domain.MaxSamplingPeriod, s.SamplingPeriod())

	s.SetSamplingPeriod(-time.Second)
	assert.Equal(t, domain.MinSamplingPeriod, s.SamplingPeriod())
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := NewState(domain.DefaultSamplingPeriod)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SetSamplingPeriod(time.Duration(i*j) * time.Millisecond)
				s.Open()
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Running()
				p := s.SamplingPeriod()
				assert.GreaterOrEqual(t, p, domain.MinSamplingPeriod)
			}
		}()
	}
	wg.Wait()
}
