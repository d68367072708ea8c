package analytics

import (
	"context"
	"sort"
	"time"

	"warden/internal/storage"
)

type Source interface {
	ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]storage.AuditLog, error)
}

type Service struct {
	store Source
}

func New(store Source) *Service {
	return &Service{store: store}
}

type Report struct {
	Total     int
	ByLevel   map[string]int
	ByEvent   map[string]int
	TopActors []ActorCount
}

type ActorCount struct {
	ActorID string
	Count   int
}

// Report summarises the moderation audit log of a guild since the given time.
func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	actors := make(map[string]int)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if log.ActorID != "" {
			actors[log.ActorID]++
		}
	}

	for id, count := range actors {
		report.TopActors = append(report.TopActors, ActorCount{ActorID: id, Count: count})
	}
	sort.Slice(report.TopActors, func(i, j int) bool {
		if report.TopActors[i].Count != report.TopActors[j].Count {
			return report.TopActors[i].Count > report.TopActors[j].Count
		}
		return report.TopActors[i].ActorID < report.TopActors[j].ActorID
	})
	if len(report.TopActors) > 3 {
		report.TopActors = report.TopActors[:3]
	}
	return report, nil
}

// Since maps a report period to its start time. Unknown periods mean a day.
func Since(now time.Time, period string) time.Time {
	switch period {
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	default:
		return now.Add(-24 * time.Hour)
	}
}
