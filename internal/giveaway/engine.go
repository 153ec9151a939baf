package giveaway

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"warden/internal/storage"

	"go.uber.org/zap"
)

// Join rejection reasons, surfaced verbatim to the participant.
const (
	ReasonClosed        = "giveaway is not running"
	ReasonAlreadyIn     = "already entered"
	ReasonNotMember     = "not a member of this server"
	ReasonMissingRole   = "missing a required role"
	ReasonForbiddenRole = "holding a disqualifying role"
	ReasonAccountAge    = "account is too new"
	ReasonVouches       = "not enough vouches"
)

var (
	// ErrMemberGone is returned by a Directory when the participant
	// can no longer be resolved. Finalization treats it as
	// ineligible, never as a failure.
	ErrMemberGone = errors.New("member gone")

	// ErrAnnouncementGone is returned by an Announcer when the
	// giveaway message, channel or guild no longer exists. The
	// giveaway is cancelled so it cannot block the sweep forever.
	ErrAnnouncementGone = errors.New("announcement gone")

	// ErrNotEnded is returned by Reroll for a giveaway that is still
	// running or was cancelled.
	ErrNotEnded = errors.New("giveaway has not ended")
)

type Member struct {
	Roles     []string
	CreatedAt time.Time
}

// Directory resolves live participant data at draw time. Role and
// vouch state can change between entry and finalization, so the
// predicate is evaluated against this, not against entry-time data.
type Directory interface {
	Member(ctx context.Context, guildID, userID string) (Member, error)
	VouchCount(ctx context.Context, guildID, userID string) (int, error)
}

// Announcer delivers the outcome to the announcement message.
type Announcer interface {
	GiveawayEnded(ctx context.Context, g storage.Giveaway, winners []string) error
	GiveawayCancelled(ctx context.Context, g storage.Giveaway) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Engine struct {
	store     *storage.Store
	directory Directory
	announcer Announcer
	logger    *zap.Logger
	clock     Clock

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEngine(store *storage.Store, directory Directory, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		directory: directory,
		logger:    logger,
		clock:     realClock{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (e *Engine) WithClock(clock Clock) {
	e.clock = clock
}

func (e *Engine) WithRand(rng *rand.Rand) {
	e.rng = rng
}

func (e *Engine) SetAnnouncer(announcer Announcer) {
	e.announcer = announcer
}

// SetDirectory rebinds the member lookup. The transport owning the
// session calls this once during wiring, before the engine runs.
func (e *Engine) SetDirectory(directory Directory) {
	e.directory = directory
}

// CheckEligibility evaluates the giveaway's requirement predicate for
// one participant. All rules are independent AND conditions; an unset
// rule always passes. The empty string means eligible.
func (e *Engine) CheckEligibility(ctx context.Context, g storage.Giveaway, userID string) (string, error) {
	member, err := e.directory.Member(ctx, g.GuildID, userID)
	if err != nil {
		if errors.Is(err, ErrMemberGone) {
			return ReasonNotMember, nil
		}
		return "", err
	}

	if len(g.RequiredRoles) > 0 && !holdsAny(member.Roles, g.RequiredRoles) {
		return ReasonMissingRole, nil
	}
	if holdsAny(member.Roles, g.ForbiddenRoles) {
		return ReasonForbiddenRole, nil
	}
	if g.MinAccountAgeDays > 0 {
		minAge := time.Duration(g.MinAccountAgeDays) * 24 * time.Hour
		if e.clock.Now().Sub(member.CreatedAt) < minAge {
			return ReasonAccountAge, nil
		}
	}

	if g.MinVouches > 0 {
		count, err := e.directory.VouchCount(ctx, g.GuildID, userID)
		if err != nil {
			return "", err
		}
		if count < g.MinVouches {
			return ReasonVouches, nil
		}
	}
	return "", nil
}

// Join evaluates eligibility immediately and records the entry. The
// predicate runs again at finalization in case anything changed.
func (e *Engine) Join(ctx context.Context, messageID, userID string) (string, error) {
	g, err := e.store.GetGiveaway(ctx, messageID)
	if err != nil {
		return "", err
	}
	if g.Status != storage.GiveawayRunning {
		return ReasonClosed, nil
	}

	reason, err := e.CheckEligibility(ctx, g, userID)
	if err != nil {
		return "", err
	}
	if reason != "" {
		return reason, nil
	}

	added, err := e.store.AddGiveawayEntry(ctx, messageID, userID)
	if err != nil {
		return "", err
	}
	if !added {
		return ReasonAlreadyIn, nil
	}
	return "", nil
}

func (e *Engine) Leave(ctx context.Context, messageID, userID string) (bool, error) {
	return e.store.RemoveGiveawayEntry(ctx, messageID, userID)
}

type Result struct {
	Giveaway  storage.Giveaway
	Winners   []string
	Cancelled bool
}

// Finalize ends a running giveaway and draws its winners. It claims
// the giveaway with a guarded status transition first, so a manual end
// racing the sweep finalizes exactly once; the loser observes
// storage.ErrGiveawayNotFound-free no-op via the returned ok flag.
func (e *Engine) Finalize(ctx context.Context, messageID string) (Result, bool, error) {
	g, err := e.store.GetGiveaway(ctx, messageID)
	if err != nil {
		return Result{}, false, err
	}

	claimed, err := e.store.TransitionGiveaway(ctx, messageID, storage.GiveawayRunning, storage.GiveawayEnded)
	if err != nil {
		return Result{}, false, err
	}
	if !claimed {
		return Result{}, false, nil
	}
	g.Status = storage.GiveawayEnded

	eligible, err := e.eligibleEntrants(ctx, g, nil)
	if err != nil {
		return Result{}, false, err
	}

	winners := e.draw(eligible, g.WinnerCount)
	if len(winners) > 0 {
		if err := e.store.AddGiveawayWinners(ctx, messageID, winners, 0); err != nil {
			return Result{}, false, err
		}
	}

	result := Result{Giveaway: g, Winners: winners}
	if e.announcer != nil {
		if err := e.announcer.GiveawayEnded(ctx, g, winners); err != nil {
			if errors.Is(err, ErrAnnouncementGone) {
				// Dangling announcement: cancel instead of
				// leaving the giveaway half-finalized.
				if _, terr := e.store.TransitionGiveaway(ctx, messageID, storage.GiveawayEnded, storage.GiveawayCancelled); terr != nil {
					return Result{}, false, terr
				}
				result.Cancelled = true
				result.Giveaway.Status = storage.GiveawayCancelled
				return result, true, nil
			}
			e.logger.Warn("giveaway announcement failed",
				zap.String("message_id", messageID), zap.Error(err))
		}
	}
	return result, true, nil
}

// Cancel moves a running giveaway to cancelled. Ended giveaways stay
// ended.
func (e *Engine) Cancel(ctx context.Context, messageID string) (bool, error) {
	g, err := e.store.GetGiveaway(ctx, messageID)
	if err != nil {
		return false, err
	}
	cancelled, err := e.store.TransitionGiveaway(ctx, messageID, storage.GiveawayRunning, storage.GiveawayCancelled)
	if err != nil {
		return false, err
	}
	if cancelled && e.announcer != nil {
		g.Status = storage.GiveawayCancelled
		if err := e.announcer.GiveawayCancelled(ctx, g); err != nil && !errors.Is(err, ErrAnnouncementGone) {
			e.logger.Warn("giveaway cancel announcement failed",
				zap.String("message_id", messageID), zap.Error(err))
		}
	}
	return cancelled, nil
}

// Reroll draws additional winners for an ended giveaway, never
// repeating anyone from the prior winners list.
func (e *Engine) Reroll(ctx context.Context, messageID string, count int) ([]string, error) {
	g, err := e.store.GetGiveaway(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if g.Status != storage.GiveawayEnded {
		return nil, ErrNotEnded
	}
	if count <= 0 {
		count = 1
	}

	prior, err := e.store.ListGiveawayWinners(ctx, messageID)
	if err != nil {
		return nil, err
	}
	exclude := make(map[string]struct{}, len(prior))
	for _, userID := range prior {
		exclude[userID] = struct{}{}
	}

	eligible, err := e.eligibleEntrants(ctx, g, exclude)
	if err != nil {
		return nil, err
	}

	winners := e.draw(eligible, count)
	if len(winners) == 0 {
		return nil, nil
	}

	round, err := e.store.LastWinnerRound(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := e.store.AddGiveawayWinners(ctx, messageID, winners, round+1); err != nil {
		return nil, err
	}
	return winners, nil
}

// Sweep finalizes every running giveaway whose end time has passed.
// Each giveaway is handled independently; one failure never blocks the
// rest.
func (e *Engine) Sweep(ctx context.Context) {
	due, err := e.store.ListDueGiveaways(ctx, e.clock.Now())
	if err != nil {
		e.logger.Error("giveaway sweep query failed", zap.Error(err))
		return
	}
	for _, g := range due {
		if _, _, err := e.Finalize(ctx, g.MessageID); err != nil {
			e.logger.Error("giveaway finalize failed",
				zap.String("message_id", g.MessageID),
				zap.String("guild_id", g.GuildID),
				zap.Error(err))
		}
	}
}

func (e *Engine) eligibleEntrants(ctx context.Context, g storage.Giveaway, exclude map[string]struct{}) ([]string, error) {
	entries, err := e.store.ListGiveawayEntries(ctx, g.MessageID)
	if err != nil {
		return nil, err
	}

	eligible := make([]string, 0, len(entries))
	for _, userID := range entries {
		if _, skip := exclude[userID]; skip {
			continue
		}
		reason, err := e.CheckEligibility(ctx, g, userID)
		if err != nil {
			e.logger.Warn("eligibility check failed, skipping entrant",
				zap.String("message_id", g.MessageID),
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		if reason != "" {
			continue
		}
		eligible = append(eligible, userID)
	}
	return eligible, nil
}

// draw picks min(count, len(eligible)) distinct participants uniformly
// at random: an unbiased Fisher-Yates shuffle, then a prefix.
func (e *Engine) draw(eligible []string, count int) []string {
	if count <= 0 || len(eligible) == 0 {
		return nil
	}
	shuffled := make([]string, len(eligible))
	copy(shuffled, eligible)

	e.rngMu.Lock()
	e.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	e.rngMu.Unlock()

	if count > len(shuffled) {
		count = len(shuffled)
	}
	return shuffled[:count]
}

func holdsAny(held, wanted []string) bool {
	for _, want := range wanted {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
