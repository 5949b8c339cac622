package relay

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func expectBeat(t *testing.T, ch <-chan struct{}, name string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("%s: expected heartbeat", name)
	}
}

func expectNoBeat(t *testing.T, ch <-chan struct{}, name string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("%s: unexpected heartbeat", name)
	case <-time.After(20 * time.Millisecond):
	}
}

func beatCounter() (chan struct{}, func()) {
	ch := make(chan struct{}, 16)
	return ch, func() { ch <- struct{}{} }
}

func TestHeartbeatEmitter_PerConnectionIsolation(t *testing.T) {
	clock := clockwork.NewFakeClock()
	emitter := NewHeartbeatEmitter(clock, time.Second)
	defer emitter.StopAll()

	aBeats, aBeat := beatCounter()
	bBeats, bBeat := beatCounter()
	emitter.Start("a", aBeat)
	emitter.Start("b", bBeat)

	if n := emitter.Active(); n != 2 {
		t.Fatalf("active = %d, want 2", n)
	}

	clock.Advance(time.Second)
	expectBeat(t, aBeats, "a")
	expectBeat(t, bBeats, "b")

	if !emitter.Stop("a") {
		t.Fatal("Stop(a) reported no heartbeat")
	}
	if emitter.Running("a") || !emitter.Running("b") {
		t.Fatal("stopping a must leave b running")
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		expectBeat(t, bBeats, "b")
	}
	expectNoBeat(t, aBeats, "a")
}

func TestHeartbeatEmitter_StopUnknown(t *testing.T) {
	emitter := NewHeartbeatEmitter(clockwork.NewFakeClock(), time.Second)

	if emitter.Stop("missing") {
		t.Error("Stop on unknown connection reported true")
	}
}

func TestHeartbeatEmitter_RestartReplacesTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	emitter := NewHeartbeatEmitter(clock, time.Second)
	defer emitter.StopAll()

	oldBeats, oldBeat := beatCounter()
	newBeats, newBeat := beatCounter()
	emitter.Start("a", oldBeat)
	emitter.Start("a", newBeat)

	if n := emitter.Active(); n != 1 {
		t.Fatalf("active = %d, want 1", n)
	}

	clock.Advance(time.Second)
	expectBeat(t, newBeats, "replacement")
	expectNoBeat(t, oldBeats, "replaced")
}

func TestHeartbeatEmitter_StopAll(t *testing.T) {
	clock := clockwork.NewFakeClock()
	emitter := NewHeartbeatEmitter(clock, time.Second)

	beats, beat := beatCounter()
	emitter.Start("a", beat)
	emitter.Start("b", beat)
	emitter.StopAll()

	if n := emitter.Active(); n != 0 {
		t.Fatalf("active = %d, want 0", n)
	}
	clock.Advance(time.Second)
	expectNoBeat(t, beats, "after StopAll")
}
