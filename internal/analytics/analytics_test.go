package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/storage"
)

func TestReportCountsEventsAndActors(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate())

	ctx := context.Background()
	now := time.Now()
	for _, entry := range []storage.AuditLog{
		{GuildID: "g", ActorID: "a", Level: "WARN", Event: "ban", CreatedAt: now},
		{GuildID: "g", ActorID: "a", Level: "WARN", Event: "ban", CreatedAt: now},
		{GuildID: "g", ActorID: "b", Level: "INFO", Event: "mute", CreatedAt: now},
		{GuildID: "g", Level: "INFO", Event: "purge", CreatedAt: now.AddDate(0, 0, -3)},
	} {
		require.NoError(t, store.AddAuditLog(ctx, entry))
	}

	report, err := New(store).Report(ctx, "g", Since(now, "day"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.ByEvent["ban"])
	assert.Equal(t, 1, report.ByLevel["INFO"])
	assert.Equal(t, []ActorCount{{ActorID: "a", Count: 2}, {ActorID: "b", Count: 1}}, report.TopActors)

	weekly, err := New(store).Report(ctx, "g", Since(now, "week"))
	require.NoError(t, err)
	assert.Equal(t, 4, weekly.Total)
}

func TestSince(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-24*time.Hour), Since(now, "day"))
	assert.Equal(t, now.AddDate(0, 0, -7), Since(now, "week"))
	assert.Equal(t, now.AddDate(0, -1, 0), Since(now, "month"))
	assert.Equal(t, now.Add(-24*time.Hour), Since(now, "bogus"))
}
