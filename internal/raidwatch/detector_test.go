package raidwatch

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestDetector() (*Detector, *fakeClock) {
	detector := New()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	detector.WithClock(clock)
	return detector, clock
}

func TestRecordPrunesOldEvents(t *testing.T) {
	detector, clock := newTestDetector()
	limits := Limits{Window: 10 * time.Second, Threshold: 5}

	if count := detector.Record("g1", KindJoin, limits); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	clock.advance(3 * time.Second)
	if count := detector.Record("g1", KindJoin, limits); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	clock.advance(9 * time.Second)
	// First event is now 12s old and must fall out of the window.
	if count := detector.Record("g1", KindJoin, limits); count != 2 {
		t.Fatalf("expected 2 after pruning, got %d", count)
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	detector, _ := newTestDetector()
	limits := Limits{Window: 10 * time.Second, Threshold: 5}

	detector.Record("g1", KindJoin, limits)
	detector.Record("g1", KindChannelCreate, limits)
	if count := detector.Record("g2", KindJoin, limits); count != 1 {
		t.Fatalf("expected 1 for other guild, got %d", count)
	}
	if count := detector.Record("g1", KindJoin, limits); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestObserveTriggersOnceThenCoolsDown(t *testing.T) {
	detector, clock := newTestDetector()
	limits := Limits{Window: 60 * time.Second, Threshold: 3}
	cooldown := 2 * time.Minute

	// Three joins inside 10 seconds trip the rule exactly once.
	var triggered bool
	for i := 0; i < 3; i++ {
		_, triggered = detector.Observe("g1", KindJoin, limits, cooldown)
		clock.advance(5 * time.Second)
	}
	if !triggered {
		t.Fatalf("expected trigger on third join")
	}

	// A fourth join 5s later is still in cooldown.
	if _, triggered := detector.Observe("g1", KindJoin, limits, cooldown); triggered {
		t.Fatalf("expected cooldown to suppress trigger")
	}

	// After the cooldown passes the old events have been pruned, so a
	// fresh burst is needed before the rule can fire again.
	clock.advance(cooldown)
	for i := 0; i < 2; i++ {
		if _, triggered := detector.Observe("g1", KindJoin, limits, cooldown); triggered {
			t.Fatalf("unexpected trigger below threshold")
		}
	}
	if _, triggered := detector.Observe("g1", KindJoin, limits, cooldown); !triggered {
		t.Fatalf("expected trigger after cooldown")
	}
}

func TestShouldTriggerHonorsCooldown(t *testing.T) {
	detector, clock := newTestDetector()
	limits := Limits{Window: 30 * time.Second, Threshold: 2}

	detector.Record("g1", KindWebhookUpdate, limits)
	detector.Record("g1", KindWebhookUpdate, limits)
	if !detector.ShouldTrigger("g1", KindWebhookUpdate, limits) {
		t.Fatalf("expected trigger at threshold")
	}

	detector.ArmCooldown("g1", KindWebhookUpdate, time.Minute)
	detector.Record("g1", KindWebhookUpdate, limits)
	if detector.ShouldTrigger("g1", KindWebhookUpdate, limits) {
		t.Fatalf("expected suppressed trigger during cooldown")
	}

	// The cooldown outlives the window, so the earlier events are gone
	// and a new burst has to reach the threshold on its own.
	clock.advance(61 * time.Second)
	detector.Record("g1", KindWebhookUpdate, limits)
	detector.Record("g1", KindWebhookUpdate, limits)
	if !detector.ShouldTrigger("g1", KindWebhookUpdate, limits) {
		t.Fatalf("expected trigger after cooldown expiry")
	}
}

func TestCooldownScopedPerKind(t *testing.T) {
	detector, _ := newTestDetector()
	limits := Limits{Window: 10 * time.Second, Threshold: 2}

	detector.ArmCooldown("g1", KindJoin, time.Minute)
	detector.Record("g1", KindChannelDelete, limits)
	detector.Record("g1", KindChannelDelete, limits)
	if !detector.ShouldTrigger("g1", KindChannelDelete, limits) {
		t.Fatalf("join cooldown must not suppress channel_delete")
	}
}

func TestLimitsClamp(t *testing.T) {
	clamped := Limits{Window: time.Second, Threshold: 0}.Clamp()
	if clamped.Window != 5*time.Second || clamped.Threshold != 2 {
		t.Fatalf("unexpected lower clamp: %+v", clamped)
	}
	clamped = Limits{Window: time.Hour, Threshold: 1000}.Clamp()
	if clamped.Window != 600*time.Second || clamped.Threshold != 100 {
		t.Fatalf("unexpected upper clamp: %+v", clamped)
	}
}

func TestReset(t *testing.T) {
	detector, _ := newTestDetector()
	limits := Limits{Window: 10 * time.Second, Threshold: 2}

	detector.Record("g1", KindJoin, limits)
	detector.ArmCooldown("g1", KindJoin, time.Minute)
	detector.Reset("g1", KindJoin)
	if count := detector.Record("g1", KindJoin, limits); count != 1 {
		t.Fatalf("expected fresh stream after reset, got %d", count)
	}
	detector.Record("g1", KindJoin, limits)
	if !detector.ShouldTrigger("g1", KindJoin, limits) {
		t.Fatalf("expected cooldown cleared by reset")
	}
}
