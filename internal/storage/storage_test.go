package storage

import (
	"context"
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

func TestMigrateIsRepeatable(t *testing.T) {
	store := newTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestUpsertGuildSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	settings := GuildSettings{GuildID: "g1", LogChannel: "c1", MuteRoleID: "r1", DMOnAction: true}
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.LogChannel = "c2"
	settings.DMOnAction = false
	if err := store.UpsertGuildSettings(ctx, settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(ctx, "g1", GuildSettings{})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.LogChannel != "c2" || got.MuteRoleID != "r1" || got.DMOnAction {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestGetGuildSettingsFallsBackToDefaults(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetGuildSettings(context.Background(), "unknown", GuildSettings{LogChannel: "default", DMOnAction: true})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.GuildID != "unknown" || got.LogChannel != "default" || !got.DMOnAction {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestAuditLogsSinceAndCleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	entries := []AuditLog{
		{GuildID: "g1", UserID: "u1", ActorID: "m1", Level: "warn", Event: "ban", CreatedAt: now},
		{GuildID: "g1", UserID: "u2", Level: "info", Event: "mute", CreatedAt: now.Add(-2 * time.Hour)},
		{GuildID: "g1", UserID: "u3", Level: "info", Event: "purge", CreatedAt: now.AddDate(0, 0, -40)},
		{GuildID: "g2", UserID: "u4", Level: "info", Event: "ban", CreatedAt: now},
	}
	for _, entry := range entries {
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, "g1", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Event != "ban" || logs[0].ActorID != "m1" {
		t.Fatalf("unexpected logs: %+v", logs)
	}

	if err := store.CleanupAuditLogs(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	logs, err = store.ListAuditLogs(ctx, "g1", time.Time{})
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected old entry removed, got %d logs", len(logs))
	}
}

func TestMutes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	if err := store.AddMute(ctx, Mute{GuildID: "g1", UserID: "u1", RoleID: "r1", Reason: "spam", CreatedAt: time.Now(), ExpiresAt: &expires}); err != nil {
		t.Fatalf("add mute: %v", err)
	}
	if err := store.AddMute(ctx, Mute{GuildID: "g1", UserID: "u2", RoleID: "r1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("add mute: %v", err)
	}

	mute, ok, err := store.GetMute(ctx, "g1", "u1")
	if err != nil || !ok {
		t.Fatalf("get mute: ok=%v err=%v", ok, err)
	}
	if mute.ExpiresAt == nil || !mute.ExpiresAt.Equal(expires) || mute.Reason != "spam" {
		t.Fatalf("unexpected mute: %+v", mute)
	}

	mutes, err := store.ListMutes(ctx)
	if err != nil {
		t.Fatalf("list mutes: %v", err)
	}
	if len(mutes) != 2 {
		t.Fatalf("expected 2 mutes, got %d", len(mutes))
	}

	removed, err := store.RemoveMute(ctx, "g1", "u1")
	if err != nil || !removed {
		t.Fatalf("remove mute: removed=%v err=%v", removed, err)
	}
	removed, err = store.RemoveMute(ctx, "g1", "u1")
	if err != nil || removed {
		t.Fatalf("second remove: removed=%v err=%v", removed, err)
	}
	if _, ok, _ := store.GetMute(ctx, "g1", "u1"); ok {
		t.Fatalf("expected mute gone")
	}
}

func TestNextArchiveNumber(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := store.NextArchiveNumber(ctx, "g1")
		if err != nil {
			t.Fatalf("next archive number: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	got, err := store.NextArchiveNumber(ctx, "g2")
	if err != nil || got != 1 {
		t.Fatalf("expected separate counter per guild, got %d (%v)", got, err)
	}
}
