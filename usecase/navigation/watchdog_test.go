package navigation_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/portal/usecase/navigation"
	"github.com/fastygo/portal/usecase/navigation/navigationtest"
)

func TestWatchdogFiresAfterDelay(t *testing.T) {
	clock := &navigationtest.ManualClock{}
	w := navigation.NewWatchdog(5*time.Second, clock, nil)

	var fired atomic.Int32
	w.Arm("c1", func() { fired.Add(1) })

	clock.Advance(4900 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.True(t, w.Armed("c1"))

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.False(t, w.Armed("c1"))
}

func TestWatchdogDisarmCancels(t *testing.T) {
	clock := &navigationtest.ManualClock{}
	w := navigation.NewWatchdog(5*time.Second, clock, nil)

	var fired atomic.Int32
	w.Arm("c1", func() { fired.Add(1) })
	clock.Advance(4900 * time.Millisecond)

	assert.True(t, w.Disarm("c1"))
	assert.False(t, w.Disarm("c1"))

	clock.Advance(time.Minute)
	assert.Equal(t, int32(0), fired.Load())
}

func TestWatchdogRearmReplacesPending(t *testing.T) {
	clock := &navigationtest.ManualClock{}
	w := navigation.NewWatchdog(5*time.Second, clock, nil)

	var first, second atomic.Int32
	w.Arm("c1", func() { first.Add(1) })
	clock.Advance(3 * time.Second)
	w.Arm("c1", func() { second.Add(1) })

	clock.Advance(2 * time.Second)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, int32(0), second.Load())

	clock.Advance(3 * time.Second)
	assert.Equal(t, int32(1), second.Load())
}

func TestWatchdogClientsAreIndependent(t *testing.T) {
	clock := &navigationtest.ManualClock{}
	w := navigation.NewWatchdog(5*time.Second, clock, nil)

	var a, b atomic.Int32
	w.Arm("a", func() { a.Add(1) })
	w.Arm("b", func() { b.Add(1) })
	w.Disarm("a")

	clock.Advance(5 * time.Second)
	assert.Equal(t, int32(0), a.Load())
	assert.Equal(t, int32(1), b.Load())
}

func TestWatchdogStop(t *testing.T) {
	clock := &navigationtest.ManualClock{}
	w := navigation.NewWatchdog(0, clock, nil)
	assert.Equal(t, navigation.DefaultDelay, w.Delay())

	var fired atomic.Int32
	w.Arm("c1", func() { fired.Add(1) })
	w.Stop()
	clock.Advance(time.Minute)
	assert.Equal(t, int32(0), fired.Load())
}

func TestWatchdogWithWallClock(t *testing.T) {
	w := navigation.NewWatchdog(10*time.Millisecond, nil, nil)
	done := make(chan struct{})
	w.Arm("c1", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not fire")
	}
}
