package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	db := openScratch(t)
	mustExec(t, db, createLanguages)

	rows := [][]any{{"en", "English", "English", 1}, {"fr", "French", "Français", 1}}
	n, err := seedIfEmpty(ctx, db, "languages", []string{"code", "name", "native_name", "is_active"}, rows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = seedIfEmpty(ctx, db, "languages", []string{"code", "name", "native_name", "is_active"}, rows)
	require.NoError(t, err)
	assert.Zero(t, n, "a populated table is left alone")
}

func TestSeedReferenceData_KeepsOperatorChanges(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	b := openTestBackend(t, cfg, Options{})

	langs, err := b.GetTable(types.LanguagesTable)
	require.NoError(t, err)
	require.NoError(t, langs.Delete(ctx, "fr"))
	require.NoError(t, b.SetFlag(ctx, types.FlagMaintenanceMode, true))

	require.NoError(t, b.seedReferenceData(ctx))

	_, err = langs.Get(ctx, "fr")
	assert.ErrorIs(t, err, types.ErrNotFound, "deleted rows are not re-seeded")
	on, err := b.GetFlag(ctx, types.FlagMaintenanceMode)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestDefaultFlags(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	for _, f := range defaultFlags {
		got, err := b.GetFlag(ctx, f.key)
		require.NoError(t, err, f.key)
		assert.Equal(t, f.enabled, got, f.key)
	}

	settings, err := b.GetTable(types.SettingsTable)
	require.NoError(t, err)
	raw, err := settings.Get(ctx, types.FlagRegistration)
	require.NoError(t, err)
	assert.Equal(t, "true", raw.(*types.Setting).Value, "flags are stored as text")
}

func TestRewardCycle(t *testing.T) {
	b := newTestBackend(t)
	days, err := b.RewardCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, days, rewardCycleDays)

	assert.Equal(t, types.RewardDay{Day: 1, Reward: 10}, days[0])
	assert.Equal(t, types.RewardDay{Day: 7, Reward: 50, Bonus: true}, days[6])
	assert.Equal(t, types.RewardDay{Day: 30, Reward: 100, Bonus: true}, days[29])
	for i, d := range days {
		assert.Equal(t, i+1, d.Day)
	}
}
