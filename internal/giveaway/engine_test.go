package giveaway

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"warden/internal/storage"

	"go.uber.org/zap"
)

type fakeDirectory struct {
	members map[string]Member
	vouches map[string]int
}

func (d *fakeDirectory) Member(_ context.Context, _, userID string) (Member, error) {
	member, ok := d.members[userID]
	if !ok {
		return Member{}, ErrMemberGone
	}
	return member, nil
}

func (d *fakeDirectory) VouchCount(_ context.Context, _, userID string) (int, error) {
	return d.vouches[userID], nil
}

type fakeAnnouncer struct {
	gone      bool
	ended     int
	cancelled int
}

func (a *fakeAnnouncer) GiveawayEnded(_ context.Context, _ storage.Giveaway, _ []string) error {
	a.ended++
	if a.gone {
		return ErrAnnouncementGone
	}
	return nil
}

func (a *fakeAnnouncer) GiveawayCancelled(_ context.Context, _ storage.Giveaway) error {
	a.cancelled++
	if a.gone {
		return ErrAnnouncementGone
	}
	return nil
}

func newTestEngine(t *testing.T, directory *fakeDirectory) (*Engine, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine := NewEngine(store, directory, zap.NewNop())
	engine.WithRand(rand.New(rand.NewSource(1)))
	return engine, store
}

func oldAccount() Member {
	return Member{CreatedAt: time.Now().Add(-365 * 24 * time.Hour)}
}

func createRunning(t *testing.T, store *storage.Store, g storage.Giveaway) {
	t.Helper()
	if g.MessageID == "" {
		g.MessageID = "m1"
	}
	if g.GuildID == "" {
		g.GuildID = "g1"
	}
	if g.ChannelID == "" {
		g.ChannelID = "c1"
	}
	if g.Prize == "" {
		g.Prize = "prize"
	}
	if g.HostID == "" {
		g.HostID = "host"
	}
	if g.WinnerCount == 0 {
		g.WinnerCount = 1
	}
	if g.EndAt.IsZero() {
		g.EndAt = time.Now().Add(time.Hour)
	}
	if err := store.CreateGiveaway(context.Background(), g); err != nil {
		t.Fatalf("create giveaway: %v", err)
	}
}

func TestJoinEligibilityReasons(t *testing.T) {
	directory := &fakeDirectory{
		members: map[string]Member{
			"ok":     {Roles: []string{"r1"}, CreatedAt: time.Now().Add(-100 * 24 * time.Hour)},
			"norole": oldAccount(),
			"banned": {Roles: []string{"r1", "bad"}, CreatedAt: time.Now().Add(-100 * 24 * time.Hour)},
			"fresh":  {Roles: []string{"r1"}, CreatedAt: time.Now().Add(-time.Hour)},
		},
		vouches: map[string]int{"ok": 5},
	}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{
		RequiredRoles:     []string{"r1"},
		ForbiddenRoles:    []string{"bad"},
		MinAccountAgeDays: 7,
		MinVouches:        3,
	})
	ctx := context.Background()

	cases := map[string]string{
		"ok":     "",
		"norole": ReasonMissingRole,
		"banned": ReasonForbiddenRole,
		"fresh":  ReasonAccountAge,
		"ghost":  ReasonNotMember,
	}
	for userID, want := range cases {
		reason, err := engine.Join(ctx, "m1", userID)
		if err != nil {
			t.Fatalf("join %s: %v", userID, err)
		}
		if reason != want {
			t.Fatalf("join %s: expected %q, got %q", userID, want, reason)
		}
	}

	// Low vouch count is its own rejection.
	directory.members["unvouched"] = Member{Roles: []string{"r1"}, CreatedAt: time.Now().Add(-100 * 24 * time.Hour)}
	reason, err := engine.Join(ctx, "m1", "unvouched")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if reason != ReasonVouches {
		t.Fatalf("expected %q, got %q", ReasonVouches, reason)
	}

	// Re-joining is reported, not an error.
	reason, err = engine.Join(ctx, "m1", "ok")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if reason != ReasonAlreadyIn {
		t.Fatalf("expected %q, got %q", ReasonAlreadyIn, reason)
	}
}

func TestDrawSizeMembershipAndUniqueness(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{WinnerCount: 3, EndAt: time.Now().Add(-time.Minute)})
	ctx := context.Background()

	entrants := []string{"u1", "u2", "u3", "u4", "u5"}
	for _, userID := range entrants {
		directory.members[userID] = oldAccount()
		if _, err := store.AddGiveawayEntry(ctx, "m1", userID); err != nil {
			t.Fatalf("entry: %v", err)
		}
	}

	result, finalized, err := engine.Finalize(ctx, "m1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !finalized {
		t.Fatalf("expected finalization")
	}
	if len(result.Winners) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(result.Winners))
	}
	seen := make(map[string]bool)
	valid := map[string]bool{"u1": true, "u2": true, "u3": true, "u4": true, "u5": true}
	for _, winner := range result.Winners {
		if !valid[winner] {
			t.Fatalf("winner %s not an entrant", winner)
		}
		if seen[winner] {
			t.Fatalf("winner %s drawn twice", winner)
		}
		seen[winner] = true
	}
}

func TestDrawRequestMoreThanEligible(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{"u1": oldAccount(), "u2": oldAccount()}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{WinnerCount: 10})
	ctx := context.Background()

	store.AddGiveawayEntry(ctx, "m1", "u1")
	store.AddGiveawayEntry(ctx, "m1", "u2")

	result, _, err := engine.Finalize(ctx, "m1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(result.Winners) != 2 {
		t.Fatalf("expected min(W,E)=2 winners, got %d", len(result.Winners))
	}
}

func TestFinalizeFiltersByRequiredRole(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{WinnerCount: 5, RequiredRoles: []string{"R"}})
	ctx := context.Background()

	holders := map[string]bool{"u2": true, "u4": true}
	for _, userID := range []string{"u1", "u2", "u3", "u4", "u5"} {
		member := oldAccount()
		if holders[userID] {
			member.Roles = []string{"R"}
		}
		directory.members[userID] = member
		store.AddGiveawayEntry(ctx, "m1", userID)
	}

	result, _, err := engine.Finalize(ctx, "m1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(result.Winners) != 2 {
		t.Fatalf("expected 2 winners, got %d", len(result.Winners))
	}
	for _, winner := range result.Winners {
		if !holders[winner] {
			t.Fatalf("winner %s does not hold required role", winner)
		}
	}
}

func TestFinalizeIsSelfGuarding(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{"u1": oldAccount()}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{})
	ctx := context.Background()
	store.AddGiveawayEntry(ctx, "m1", "u1")

	_, finalized, err := engine.Finalize(ctx, "m1")
	if err != nil || !finalized {
		t.Fatalf("first finalize: finalized=%t err=%v", finalized, err)
	}
	// The racing second call is a no-op.
	_, finalized, err = engine.Finalize(ctx, "m1")
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if finalized {
		t.Fatalf("expected second finalize to no-op")
	}
}

func TestFinalizeCancelsWhenAnnouncementGone(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{"u1": oldAccount()}}
	engine, store := newTestEngine(t, directory)
	engine.SetAnnouncer(&fakeAnnouncer{gone: true})
	createRunning(t, store, storage.Giveaway{})
	ctx := context.Background()
	store.AddGiveawayEntry(ctx, "m1", "u1")

	result, finalized, err := engine.Finalize(ctx, "m1")
	if err != nil || !finalized {
		t.Fatalf("finalize: finalized=%t err=%v", finalized, err)
	}
	if !result.Cancelled {
		t.Fatalf("expected cancellation for dangling announcement")
	}
	g, err := store.GetGiveaway(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Status != storage.GiveawayCancelled {
		t.Fatalf("expected cancelled status, got %s", g.Status)
	}
}

func TestRerollExcludesPriorWinners(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{WinnerCount: 2})
	ctx := context.Background()

	for _, userID := range []string{"u1", "u2", "u3", "u4"} {
		directory.members[userID] = oldAccount()
		store.AddGiveawayEntry(ctx, "m1", userID)
	}

	result, _, err := engine.Finalize(ctx, "m1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	prior := make(map[string]bool)
	for _, winner := range result.Winners {
		prior[winner] = true
	}

	rerolled, err := engine.Reroll(ctx, "m1", 2)
	if err != nil {
		t.Fatalf("reroll: %v", err)
	}
	if len(rerolled) != 2 {
		t.Fatalf("expected 2 rerolled winners, got %d", len(rerolled))
	}
	for _, winner := range rerolled {
		if prior[winner] {
			t.Fatalf("reroll repeated prior winner %s", winner)
		}
	}

	// Everyone has now won; a further reroll finds nobody.
	rerolled, err = engine.Reroll(ctx, "m1", 1)
	if err != nil {
		t.Fatalf("exhausted reroll: %v", err)
	}
	if len(rerolled) != 0 {
		t.Fatalf("expected no winners left, got %v", rerolled)
	}

	winners, err := store.ListGiveawayWinners(ctx, "m1")
	if err != nil {
		t.Fatalf("winners: %v", err)
	}
	if len(winners) != 4 {
		t.Fatalf("expected winners list to grow to 4, got %d", len(winners))
	}
}

func TestRerollRequiresEnded(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{}}
	engine, store := newTestEngine(t, directory)
	createRunning(t, store, storage.Giveaway{})

	if _, err := engine.Reroll(context.Background(), "m1", 1); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("expected ErrNotEnded for running giveaway, got %v", err)
	}
}

func TestCancelOnlyFromRunning(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{}}
	engine, store := newTestEngine(t, directory)
	announcer := &fakeAnnouncer{}
	engine.SetAnnouncer(announcer)
	createRunning(t, store, storage.Giveaway{})
	ctx := context.Background()

	cancelled, err := engine.Cancel(ctx, "m1")
	if err != nil || !cancelled {
		t.Fatalf("cancel: cancelled=%t err=%v", cancelled, err)
	}
	if announcer.cancelled != 1 {
		t.Fatalf("expected cancel announcement")
	}
	// No transition leaves cancelled.
	cancelled, err = engine.Cancel(ctx, "m1")
	if err != nil {
		t.Fatalf("re-cancel: %v", err)
	}
	if cancelled {
		t.Fatalf("expected re-cancel to no-op")
	}
}

func TestSweepFinalizesDueGiveaways(t *testing.T) {
	directory := &fakeDirectory{members: map[string]Member{"u1": oldAccount()}}
	engine, store := newTestEngine(t, directory)
	ctx := context.Background()

	createRunning(t, store, storage.Giveaway{MessageID: "due", EndAt: time.Now().Add(-time.Minute)})
	createRunning(t, store, storage.Giveaway{MessageID: "future", EndAt: time.Now().Add(time.Hour)})
	store.AddGiveawayEntry(ctx, "due", "u1")

	engine.Sweep(ctx)

	g, err := store.GetGiveaway(ctx, "due")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Status != storage.GiveawayEnded {
		t.Fatalf("expected due giveaway ended, got %s", g.Status)
	}
	g, err = store.GetGiveaway(ctx, "future")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if g.Status != storage.GiveawayRunning {
		t.Fatalf("expected future giveaway still running, got %s", g.Status)
	}
}
