package services

import (
	"context"
	"errors"
	"testing"

	_ "cash-kiosk/migrations"
	"cash-kiosk/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournalApp(t *testing.T) core.App {
	t.Helper()
	app := core.NewBaseApp(core.BaseAppConfig{DataDir: t.TempDir()})
	require.NoError(t, app.Bootstrap())
	require.NoError(t, app.RunAllMigrations())
	t.Cleanup(func() { _ = app.ResetBootstrapState() })
	return app
}

func TestOrderJournal_RecordAndList(t *testing.T) {
	journal := NewOrderJournal(newJournalApp(t))
	ctx := context.Background()

	remote := models.CreatedOrder{ID: "42", OrderNo: "17", Draft: sampleDraft()}
	require.NoError(t, journal.Record(ctx, "session-1", remote, nil))

	local := sampleDraft()
	local.LocalRef = "ABC123"
	fallback := models.CreatedOrder{Draft: local, Local: true}
	require.NoError(t, journal.Record(ctx, "session-2", fallback, errors.New("order service down")))

	all, err := journal.List(ctx, false, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failed, err := journal.List(ctx, true, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "session-2", failed[0].SessionID)
	assert.Equal(t, "ABC123", failed[0].LocalRef)
	assert.Equal(t, "order service down", failed[0].Error)
	assert.Equal(t, "190.00", failed[0].Total)
	assert.Equal(t, "10.00", failed[0].Change)
	assert.False(t, failed[0].Submitted)
}

func TestOrderJournal_RecordUpdatesSameSession(t *testing.T) {
	journal := NewOrderJournal(newJournalApp(t))
	ctx := context.Background()

	require.NoError(t, journal.Record(ctx, "session-1", models.CreatedOrder{Draft: sampleDraft(), Local: true}, errors.New("timeout")))
	require.NoError(t, journal.Record(ctx, "session-1", models.CreatedOrder{ID: "9", OrderNo: "9", Draft: sampleDraft()}, nil))

	all, err := journal.List(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Submitted)
	assert.Empty(t, all[0].Error)
	assert.Equal(t, "9", all[0].OrderNo)
}
