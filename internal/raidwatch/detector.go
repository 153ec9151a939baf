package raidwatch

import (
	"sync"
	"time"
)

// Kind names one stream of timestamped events watched per guild.
type Kind string

const (
	KindJoin          Kind = "join"
	KindMention       Kind = "mention"
	KindChannelCreate Kind = "channel_create"
	KindChannelDelete Kind = "channel_delete"
	KindWebhookUpdate Kind = "webhook_update"
)

const (
	minWindow    = 5 * time.Second
	maxWindow    = 600 * time.Second
	minThreshold = 2
	maxThreshold = 100
)

// Limits is the trigger rule for one detector kind: at least Threshold
// events inside the trailing Window.
type Limits struct {
	Window    time.Duration
	Threshold int
}

// Clamp forces the rule into sane bounds.
func (l Limits) Clamp() Limits {
	if l.Window < minWindow {
		l.Window = minWindow
	}
	if l.Window > maxWindow {
		l.Window = maxWindow
	}
	if l.Threshold < minThreshold {
		l.Threshold = minThreshold
	}
	if l.Threshold > maxThreshold {
		l.Threshold = maxThreshold
	}
	return l
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type streamKey struct {
	guildID string
	kind    Kind
}

// Detector keeps per-(guild, kind) sliding windows of event timestamps
// and per-(guild, kind) cooldowns suppressing repeated triggers. State
// is process-local and never persisted; entries are pruned lazily on
// each insert, so idle guilds cost nothing.
type Detector struct {
	mu        sync.Mutex
	clock     Clock
	events    map[streamKey][]time.Time
	cooldowns map[streamKey]time.Time
}

func New() *Detector {
	return &Detector{
		clock:     realClock{},
		events:    make(map[streamKey][]time.Time),
		cooldowns: make(map[streamKey]time.Time),
	}
}

func (d *Detector) WithClock(clock Clock) {
	d.clock = clock
}

// Record appends an event to the guild's stream, prunes everything
// older than the window and returns the resulting count.
func (d *Detector) Record(guildID string, kind Kind, limits Limits) int {
	limits = limits.Clamp()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recordLocked(streamKey{guildID, kind}, d.clock.Now(), limits.Window)
}

// ShouldTrigger reports whether the stream currently breaches its
// threshold and is not inside a cooldown.
func (d *Detector) ShouldTrigger(guildID string, kind Kind, limits Limits) bool {
	limits = limits.Clamp()
	d.mu.Lock()
	defer d.mu.Unlock()

	key := streamKey{guildID, kind}
	now := d.clock.Now()
	if d.countLocked(key, now, limits.Window) < limits.Threshold {
		return false
	}
	return now.After(d.cooldowns[key]) || now.Equal(d.cooldowns[key])
}

// ArmCooldown suppresses further triggers for the stream until now+d.
func (d *Detector) ArmCooldown(guildID string, kind Kind, duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cooldowns[streamKey{guildID, kind}] = d.clock.Now().Add(duration)
}

// Observe records one event and decides in the same critical section
// whether it crossed the threshold, arming the cooldown before
// returning. Two near-simultaneous events can therefore never both see
// the trigger: the cooldown is armed before any side effect runs.
func (d *Detector) Observe(guildID string, kind Kind, limits Limits, cooldown time.Duration) (count int, triggered bool) {
	limits = limits.Clamp()
	d.mu.Lock()
	defer d.mu.Unlock()

	key := streamKey{guildID, kind}
	now := d.clock.Now()
	count = d.recordLocked(key, now, limits.Window)
	if count < limits.Threshold {
		return count, false
	}
	if now.Before(d.cooldowns[key]) {
		return count, false
	}
	d.cooldowns[key] = now.Add(cooldown)
	return count, true
}

// Reset clears the stream and its cooldown.
func (d *Detector) Reset(guildID string, kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := streamKey{guildID, kind}
	delete(d.events, key)
	delete(d.cooldowns, key)
}

func (d *Detector) recordLocked(key streamKey, now time.Time, window time.Duration) int {
	hits := d.pruneLocked(key, now, window)
	hits = append(hits, now)
	d.events[key] = hits
	return len(hits)
}

func (d *Detector) countLocked(key streamKey, now time.Time, window time.Duration) int {
	hits := d.pruneLocked(key, now, window)
	d.events[key] = hits
	return len(hits)
}

func (d *Detector) pruneLocked(key streamKey, now time.Time, window time.Duration) []time.Time {
	hits := d.events[key]
	cutoff := now.Add(-window)
	idx := 0
	for _, hit := range hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	return hits[idx:]
}
