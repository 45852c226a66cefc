package softap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClockFiringOrder(t *testing.T) {
	c := NewManualClock()
	var fired []string

	c.AfterFunc(20*time.Millisecond, func() { fired = append(fired, "late") })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "early") })
	c.AfterFunc(10*time.Millisecond, func() { fired = append(fired, "early2") })

	c.Advance(5 * time.Millisecond)
	assert.Empty(t, fired)

	c.Advance(30 * time.Millisecond)
	assert.Equal(t, []string{"early", "early2", "late"}, fired)
	assert.Zero(t, c.Pending())
}

func TestManualClockStop(t *testing.T) {
	c := NewManualClock()
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(2 * time.Second)
	assert.False(t, fired)
}

func TestManualClockCallbackMayArmTimers(t *testing.T) {
	c := NewManualClock()
	var fired []string
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "first")
		c.AfterFunc(time.Millisecond, func() { fired = append(fired, "chained") })
	})

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"first"}, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, []string{"first", "chained"}, fired)
}
