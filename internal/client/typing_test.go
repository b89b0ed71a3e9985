package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"chathub/internal/app/user"
)

type recordedSignal struct {
	roomID   int64
	isTyping bool
}

type fakeEmitter struct {
	mu      sync.Mutex
	signals []recordedSignal
}

func (f *fakeEmitter) SendTyping(roomID int64, isTyping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, recordedSignal{roomID: roomID, isTyping: isTyping})
	return nil
}

func (f *fakeEmitter) recorded() []recordedSignal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedSignal(nil), f.signals...)
}

func TestTypingSenderEmitsOncePerBurst(t *testing.T) {
	assert := assert.New(t)

	emitter := &fakeEmitter{}
	sender := NewTypingSender(emitter, 42)

	sender.Keystroke()
	sender.Keystroke()
	sender.Keystroke()

	assert.Equal([]recordedSignal{{42, true}}, emitter.recorded())

	sender.Stop()
	assert.Equal([]recordedSignal{{42, true}, {42, false}}, emitter.recorded())

	// Stop outside a burst emits nothing.
	sender.Stop()
	assert.Len(emitter.recorded(), 2)

	// A new burst starts cleanly.
	sender.Keystroke()
	assert.Equal(recordedSignal{42, true}, emitter.recorded()[2])
}

func TestTypingSenderInactivityStops(t *testing.T) {
	assert := assert.New(t)

	emitter := &fakeEmitter{}
	sender := NewTypingSender(emitter, 42)

	sender.Keystroke()

	// Simulate the inactivity timer firing.
	sender.inactivityStop()

	assert.Equal([]recordedSignal{{42, true}, {42, false}}, emitter.recorded())
}

func TestTypingTrackerApplyAndStop(t *testing.T) {
	assert := assert.New(t)

	tracker := NewTypingTracker()
	bob := user.User{ID: 2, Name: "bob"}

	tracker.Apply(42, bob, true)
	assert.Equal([]user.User{bob}, tracker.Typing(42))

	// The stop signal supersedes the start.
	tracker.Apply(42, bob, false)
	assert.Empty(tracker.Typing(42))

	// A stop with no preceding start is a no-op.
	tracker.Apply(7, bob, false)
	assert.Empty(tracker.Typing(7))
}

func TestTypingTrackerExpiresLostStops(t *testing.T) {
	assert := assert.New(t)

	now := time.Now()
	tracker := newTypingTracker(5*time.Second, func() time.Time { return now })

	bob := user.User{ID: 2, Name: "bob"}
	tracker.Apply(42, bob, true)
	assert.Len(tracker.Typing(42), 1)

	// The stop signal is lost; the indicator still converges to empty.
	now = now.Add(6 * time.Second)
	assert.Empty(tracker.Typing(42))

	// A fresh start refreshes the deadline.
	tracker.Apply(42, bob, true)
	now = now.Add(3 * time.Second)
	assert.Len(tracker.Typing(42), 1)
}

func TestTypingTrackerClear(t *testing.T) {
	assert := assert.New(t)

	tracker := NewTypingTracker()
	tracker.Apply(42, user.User{ID: 1}, true)
	tracker.Apply(42, user.User{ID: 2}, true)

	tracker.Clear(42)
	assert.Empty(tracker.Typing(42))
}
