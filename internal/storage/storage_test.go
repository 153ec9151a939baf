package storage

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestAutomodSettingsDefaultsAndPatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	defaults := DefaultAutomodSettings()

	got, err := store.GetAutomodSettings(ctx, "g1", defaults)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.JoinThreshold != defaults.JoinThreshold || got.JoinResponse != ResponseLog {
		t.Fatalf("expected defaults for unknown guild, got %+v", got)
	}

	patched, err := store.PatchAutomodSettings(ctx, "g1", defaults, func(s *AutomodSettings) {
		s.Enabled = true
		s.JoinThreshold = 3
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if !patched.Enabled || patched.JoinThreshold != 3 {
		t.Fatalf("unexpected patch result: %+v", patched)
	}

	// Untouched keys keep their previous values through another patch.
	patched, err = store.PatchAutomodSettings(ctx, "g1", defaults, func(s *AutomodSettings) {
		s.JoinResponse = ResponseKick
	})
	if err != nil {
		t.Fatalf("second patch: %v", err)
	}
	if !patched.Enabled || patched.JoinThreshold != 3 || patched.JoinResponse != ResponseKick {
		t.Fatalf("patch lost prior values: %+v", patched)
	}
}

func TestCaseIDAllocationUnique(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 20
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.AllocateCaseID(ctx, "g1")
			if err != nil {
				t.Errorf("allocate: %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("case id %d repeated", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d ids, got %d", workers, len(seen))
	}

	// Counters are per guild.
	id, err := store.AllocateCaseID(ctx, "g2")
	if err != nil {
		t.Fatalf("allocate other guild: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected fresh counter for g2, got %d", id)
	}
}

func TestRecordAndListCases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.RecordCase(ctx, CaseRecord{GuildID: "g1", Kind: CaseWarn, TargetID: "u1", ModeratorID: "m1", Reason: "spam"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := store.RecordCase(ctx, CaseRecord{GuildID: "g1", Kind: CaseBan, TargetID: "u2", ModeratorID: "m1", Reason: "raid"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if second != first+1 {
		t.Fatalf("expected sequential ids, got %d then %d", first, second)
	}

	warns, err := store.ListCases(ctx, "g1", CaseFilter{TargetID: "u1", Kind: CaseWarn})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(warns) != 1 || warns[0].Reason != "spam" {
		t.Fatalf("unexpected warns: %+v", warns)
	}

	removed, err := store.DeleteCases(ctx, "g1", "u1", CaseWarn)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	// Freed ids must never be reused.
	third, err := store.RecordCase(ctx, CaseRecord{GuildID: "g1", Kind: CaseWarn, TargetID: "u1"})
	if err != nil {
		t.Fatalf("record after delete: %v", err)
	}
	if third != second+1 {
		t.Fatalf("expected id %d after delete, got %d", second+1, third)
	}
}

func TestGiveawayEntryIdempotence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := Giveaway{MessageID: "m1", GuildID: "g1", ChannelID: "c1", Prize: "nitro", HostID: "h1", WinnerCount: 1, EndAt: time.Now().Add(time.Hour)}
	if err := store.CreateGiveaway(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	added, err := store.AddGiveawayEntry(ctx, "m1", "u1")
	if err != nil || !added {
		t.Fatalf("expected first entry added, err=%v", err)
	}
	added, err = store.AddGiveawayEntry(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if added {
		t.Fatalf("duplicate entry must be a no-op")
	}

	removed, err := store.RemoveGiveawayEntry(ctx, "m1", "u1")
	if err != nil || !removed {
		t.Fatalf("expected removal, err=%v", err)
	}
	removed, err = store.RemoveGiveawayEntry(ctx, "m1", "u1")
	if err != nil {
		t.Fatalf("re-remove: %v", err)
	}
	if removed {
		t.Fatalf("removing a missing entry must be a no-op")
	}
}

func TestGiveawayTransitionGuard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := Giveaway{MessageID: "m1", GuildID: "g1", ChannelID: "c1", Prize: "key", HostID: "h1", WinnerCount: 1, EndAt: time.Now().Add(-time.Minute)}
	if err := store.CreateGiveaway(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := store.ListDueGiveaways(ctx, time.Now())
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("expected 1 due giveaway, got %d", len(due))
	}

	moved, err := store.TransitionGiveaway(ctx, "m1", GiveawayRunning, GiveawayEnded)
	if err != nil || !moved {
		t.Fatalf("expected transition, err=%v", err)
	}
	// The racing second finalize sees no transition.
	moved, err = store.TransitionGiveaway(ctx, "m1", GiveawayRunning, GiveawayEnded)
	if err != nil {
		t.Fatalf("second transition: %v", err)
	}
	if moved {
		t.Fatalf("expected second transition to be a no-op")
	}
}

func TestGiveawayWinnersAppendAcrossRounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	g := Giveaway{MessageID: "m1", GuildID: "g1", ChannelID: "c1", Prize: "key", HostID: "h1", WinnerCount: 2, EndAt: time.Now()}
	if err := store.CreateGiveaway(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.AddGiveawayWinners(ctx, "m1", []string{"u1", "u2"}, 0); err != nil {
		t.Fatalf("winners: %v", err)
	}
	if err := store.AddGiveawayWinners(ctx, "m1", []string{"u3"}, 1); err != nil {
		t.Fatalf("reroll winners: %v", err)
	}

	winners, err := store.ListGiveawayWinners(ctx, "m1")
	if err != nil {
		t.Fatalf("list winners: %v", err)
	}
	if len(winners) != 3 {
		t.Fatalf("expected 3 winners, got %d", len(winners))
	}
	round, err := store.LastWinnerRound(ctx, "m1")
	if err != nil || round != 1 {
		t.Fatalf("expected round 1, got %d err=%v", round, err)
	}
}

func TestTicketOpenCapAndClaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ticketID, err := store.CreateTicket(ctx, "g1", "u1", "support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	count, err := store.CountOpenTickets(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 open ticket, got %d", count)
	}

	if err := store.ClaimTicket(ctx, ticketID, "staff1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.ClaimTicket(ctx, ticketID, "staff2"); err != ErrTicketClaimed {
		t.Fatalf("expected ErrTicketClaimed, got %v", err)
	}

	closed, err := store.CloseTicket(ctx, ticketID)
	if err != nil || !closed {
		t.Fatalf("expected close, err=%v", err)
	}
	closed, err = store.CloseTicket(ctx, ticketID)
	if err != nil {
		t.Fatalf("re-close: %v", err)
	}
	if closed {
		t.Fatalf("closing twice must be a no-op")
	}

	count, err = store.CountOpenTickets(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 open tickets, got %d", count)
	}
}

func TestVouchRateLimitWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-25 * time.Hour)
	if err := store.AddVouch(ctx, Vouch{GuildID: "g1", VoucherID: "a", TargetID: "b", Rating: 5, CreatedAt: old}); err != nil {
		t.Fatalf("add: %v", err)
	}

	last, err := store.LastVouchAt(ctx, "g1", "a", "b")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if time.Since(last) < 24*time.Hour {
		t.Fatalf("expected old vouch outside 24h window")
	}

	if err := store.AddVouch(ctx, Vouch{GuildID: "g1", VoucherID: "a", TargetID: "b", Rating: 4}); err != nil {
		t.Fatalf("add: %v", err)
	}
	last, err = store.LastVouchAt(ctx, "g1", "a", "b")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if time.Since(last) >= 24*time.Hour {
		t.Fatalf("expected fresh vouch inside 24h window")
	}

	summary, err := store.VouchSummary(ctx, "g1", "b")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 || summary.Average != 4.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestTopVouchedOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.AddVouch(ctx, Vouch{GuildID: "g1", VoucherID: "v", TargetID: "popular", Rating: 5}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := store.AddVouch(ctx, Vouch{GuildID: "g1", VoucherID: "v", TargetID: "quiet", Rating: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}

	leaders, err := store.TopVouched(ctx, "g1", 5)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(leaders) != 2 || leaders[0].UserID != "popular" || leaders[0].Count != 3 {
		t.Fatalf("unexpected leaders: %+v", leaders)
	}
}

func TestRankLadderOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetRankEntry(ctx, "g1", "gold", 50); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetRankEntry(ctx, "g1", "bronze", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetRankEntry(ctx, "g1", "silver", 20); err != nil {
		t.Fatalf("set: %v", err)
	}

	ladder, err := store.ListRankLadder(ctx, "g1")
	if err != nil {
		t.Fatalf("ladder: %v", err)
	}
	if len(ladder) != 3 || ladder[0].RoleID != "bronze" || ladder[2].RoleID != "gold" {
		t.Fatalf("ladder not threshold-ordered: %+v", ladder)
	}
}
