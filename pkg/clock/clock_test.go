package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	var fired []string

	c.AfterFunc(3*time.Second, func() { fired = append(fired, "3s") })
	c.AfterFunc(time.Second, func() {
		fired = append(fired, "1s")
		c.AfterFunc(time.Second, func() { fired = append(fired, "chained") })
	})
	stopped := c.AfterFunc(2*time.Second, func() { fired = append(fired, "stopped") })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())

	c.Advance(2500 * time.Millisecond)
	assert.Equal(t, []string{"1s", "chained"}, fired)
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"1s", "chained", "3s"}, fired)
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, time.Unix(0, 0).Add(3500*time.Millisecond), c.Now())
}
