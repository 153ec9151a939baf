package modlog

import (
	"context"

	"warden/internal/storage"

	"go.uber.org/zap"
)

// Logger records moderation cases and mirrors them to the guild's
// modlog channel. Mirroring is best-effort: it is always attempted,
// its failure never propagates, and it is never retried.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.CaseRecord)
}

func New(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// SetNotifier installs the channel mirror, wired by the bot once the
// session exists.
func (l *Logger) SetNotifier(notify func(context.Context, storage.CaseRecord)) {
	l.notify = notify
}

// Record allocates a case id, persists the case and fans out the
// mirrors. The returned id is only exposed once the ledger row exists.
func (l *Logger) Record(ctx context.Context, record storage.CaseRecord) (int64, error) {
	caseID, err := l.store.RecordCase(ctx, record)
	if err != nil {
		return 0, err
	}
	record.CaseID = caseID

	l.logger.Info("case recorded",
		zap.String("guild_id", record.GuildID),
		zap.Int64("case_id", caseID),
		zap.String("kind", record.Kind),
		zap.String("target_id", record.TargetID),
		zap.String("moderator_id", record.ModeratorID),
		zap.String("reason", record.Reason))

	if l.notify != nil {
		l.notify(ctx, record)
	}
	return caseID, nil
}
