package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqline/internal/blob"
	"reqline/internal/config"
	"reqline/internal/domain"
	"reqline/internal/engine"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Workspace = t.TempDir()
	return cfg
}

func TestOpenSeedsRegistryAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a, err := Open(ctx, cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	def, err := a.Registry.Default(domain.EntityStory)
	require.NoError(t, err)
	assert.Equal(t, "Drafted", def.Label)
	assert.Nil(t, a.Blob)

	ep, err := a.Engine.CreateEpic(ctx, engine.EpicCreate{Title: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	again, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer again.Close()
	got, err := again.Engine.GetEpic(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, ep.Key, got.Key)
	assert.Len(t, again.Registry.All(), len(a.Registry.All()))
}

func TestCustomStatusSeed(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	seed := `statuses:
  - {key: EPIC_IDEA, label: Idea, entity_type: Epic, is_deletable: true, is_default: true, rank: 1}
  - {key: EPIC_DRAFTED, label: Drafted, entity_type: Epic, is_deletable: true, rank: 10}
  - {key: EPIC_FROZEN, label: Frozen, entity_type: epics, is_locked: true, rank: 50}
`
	cfg.Statuses.File = filepath.Join(cfg.Database.Workspace, "statuses.yaml")
	require.NoError(t, os.WriteFile(cfg.Statuses.File, []byte(seed), 0o644))

	a, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	def, err := a.Registry.Default(domain.EntityEpic)
	require.NoError(t, err)
	assert.Equal(t, "Idea", def.Label)
	frozen, err := a.Registry.ByKey("EPIC_FROZEN")
	require.NoError(t, err)
	assert.Equal(t, domain.EntityEpic, frozen.EntityType)
	assert.True(t, frozen.IsLocked)
}

func TestOpenWithFSBlob(t *testing.T) {
	cfg := testConfig(t)
	cfg.Blob.Driver = "fs"
	cfg.Blob.Dir = filepath.Join(cfg.Database.Workspace, "exports")
	a, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Blob)
	assert.Equal(t, blob.DriverFilesystem, a.Blob.Driver())
}

func TestOpenRejectsBadSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Statuses.File = filepath.Join(cfg.Database.Workspace, "missing.yaml")
	_, err := Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}
