// Package sqlite is the public entry point to the pagevault engine. It
// exposes the bootstrap factory while keeping the implementation internal.
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/pagevault/internal/sqlite"
	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// Options configures Open. See the fields of the internal type: Logger,
// Hook, Now and Sleep. The zero value is usable.
type Options = sqlite.Options

// Open bootstraps the database described by cfg and returns the engine
// handle. The caller owns the handle and must Close it.
//
// Example:
//
//	engine, err := sqlite.Open(ctx, types.DefaultConfig(), sqlite.Options{})
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
func Open(ctx context.Context, cfg types.Config, opts Options) (types.Engine, error) {
	b, err := sqlite.Open(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}
