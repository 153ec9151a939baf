package analytics

import (
	"context"
	"time"

	"warden/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total  int
	ByKind map[string]int
}

// Report summarizes moderation activity for a guild since the given
// time, grouped by case kind.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	counts, err := s.store.CountCasesByKind(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByKind: counts}
	for _, count := range counts {
		report.Total += count
	}
	return report, nil
}
