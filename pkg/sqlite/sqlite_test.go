package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := types.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "pv.db")

	engine, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	report, err := engine.VerifyUniqueConstraints(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK)

	on, err := engine.GetFlag(ctx, types.FlagRegistration)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestOpen_InvalidConfig(t *testing.T) {
	engine, err := Open(context.Background(), types.Config{}, Options{})
	assert.Nil(t, engine)
	assert.True(t, errors.Is(err, types.ErrDBPathEmpty))
}
