package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestManualClock_StartsAtGivenTime(t *testing.T) {
	clock := NewManualClock(epoch)
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock(epoch)

	got := clock.Advance(48 * time.Hour)
	assert.Equal(t, epoch.Add(48*time.Hour), got)
	assert.Equal(t, got, clock.Now())

	clock.Advance(time.Second)
	assert.Equal(t, epoch.Add(48*time.Hour+time.Second), clock.Now())
}

func TestManualClock_Set(t *testing.T) {
	clock := NewManualClock(epoch)
	later := epoch.AddDate(1, 0, 0)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}

func TestManualClock_ConcurrentAdvance(t *testing.T) {
	clock := NewManualClock(epoch)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, epoch.Add(100*time.Millisecond), clock.Now())
}
