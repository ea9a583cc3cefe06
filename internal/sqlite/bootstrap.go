package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/pagevault/pkg/types"
)

// State is a step of the bootstrap pipeline.
type State int

// Bootstrap states, in pipeline order.
const (
	StateOpening State = iota
	StateIntegrityChecking
	StateSchemaInit
	StateMigrating
	StateConstraintVerifying
	StateSeeding
	StateReady
	StateError
)

var stateNames = [...]string{
	StateOpening:             "opening",
	StateIntegrityChecking:   "integrity_checking",
	StateSchemaInit:          "schema_init",
	StateMigrating:           "migrating",
	StateConstraintVerifying: "constraint_verifying",
	StateSeeding:             "seeding",
	StateReady:               "ready",
	StateError:               "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// stage is one step after Opening. Stages are re-runnable.
type stage struct {
	state State
	run   func(b *Backend, ctx context.Context) error
}

var pipeline = []stage{
	{StateIntegrityChecking, (*Backend).checkIntegrity},
	{StateSchemaInit, (*Backend).initSchema},
	{StateMigrating, (*Backend).migrateSchema},
	{StateConstraintVerifying, (*Backend).ensureConstraints},
	{StateSeeding, (*Backend).seedReferenceData},
}

// Open brings the database at cfg.DBPath to a usable state and returns the
// engine handle. It runs Opening, IntegrityChecking, SchemaInit, Migrating,
// ConstraintVerifying and Seeding in order, retrying up to cfg.MaxAttempts
// times:
//
//   - severe corruption quarantines the file and starts over on a fresh one;
//     the run after a quarantine is always granted, and at most
//     cfg.MaxAttempts files are quarantined,
//   - a schema error re-runs schema init inside the failing stage once,
//   - a full disk or a missing unique constraint stops immediately,
//   - anything else is retried after cfg.RetryBackoff.
//
// Failures are returned as *types.StartupError in StateError.
func Open(ctx context.Context, cfg types.Config, opts Options) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	logger := opts.Logger.With().Str("db", cfg.DBPath).Logger()

	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.ResolvedBackupDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, startupError(cfg, 0, StateOpening, err)
		}
	}

	var (
		lastErr     error
		lastState   State
		quarantined int
	)
	limit := cfg.MaxAttempts
	attempt := 0
	for attempt < limit {
		attempt++
		b, state, err := runPipeline(ctx, cfg, opts)
		if err == nil {
			bootstrapAttempts.WithLabelValues(outcomeReady).Inc()
			logger.Info().Int("attempt", attempt).Msg("database ready")
			return b, nil
		}
		lastErr, lastState = err, state
		fail := func(err error) error {
			bootstrapAttempts.WithLabelValues(outcomeFatal).Inc()
			return startupError(cfg, attempt, state, err)
		}
		log := logger.With().Int("attempt", attempt).Stringer("state", state).Logger()

		var cve *types.ConstraintVerificationError
		if errors.As(err, &cve) {
			log.Error().Err(err).Msg("unique constraint verification failed")
			return nil, fail(err)
		}

		sev := Classify(err)
		switch sev {
		case SeverityDiskFull:
			log.Error().Err(err).Msg("disk full; free space and restart")
			var full *types.DiskFullError
			if !errors.As(err, &full) {
				err = &types.DiskFullError{Path: cfg.DBPath, Err: err}
			}
			return nil, fail(err)

		case SeveritySevere:
			if quarantined >= cfg.MaxAttempts {
				log.Error().Err(err).Int("quarantined", quarantined).Msg("fresh databases keep failing; giving up")
				return nil, fail(err)
			}
			bootstrapAttempts.WithLabelValues(outcomeQuarantine).Inc()
			log.Error().Err(err).Msg("database is corrupted; quarantining")
			if _, qerr := Quarantine(cfg.DBPath, cfg.ResolvedBackupDir(), opts.Now(), logger); qerr != nil {
				return nil, fail(fmt.Errorf("%w (quarantine: %v)", err, qerr))
			}
			quarantined++
			if attempt == limit {
				limit++
			}

		case SeverityRecoverableSchema:
			bootstrapAttempts.WithLabelValues(outcomeRetry).Inc()
			log.Warn().Err(err).Msg("schema error; retrying")

		default:
			bootstrapAttempts.WithLabelValues(outcomeRetry).Inc()
			log.Warn().Err(err).Dur("backoff", cfg.RetryBackoff).Msg("startup attempt failed")
			if attempt < limit {
				if serr := opts.Sleep(ctx, cfg.RetryBackoff); serr != nil {
					return nil, fail(errors.Join(err, serr))
				}
			}
		}
	}

	bootstrapAttempts.WithLabelValues(outcomeFatal).Inc()
	return nil, startupError(cfg, attempt, lastState, lastErr)
}

// startupError reports a failed startup. The bootstrapper is in StateError;
// stage names the step that failed.
func startupError(cfg types.Config, attempts int, stage State, err error) *types.StartupError {
	return &types.StartupError{
		Path:     cfg.DBPath,
		Attempts: attempts,
		State:    StateError.String(),
		Stage:    stage.String(),
		Err:      err,
	}
}

// runPipeline performs one attempt. On failure the handle is closed and the
// state that failed is returned with the error.
func runPipeline(ctx context.Context, cfg types.Config, opts Options) (*Backend, State, error) {
	if err := ctx.Err(); err != nil {
		return nil, StateOpening, err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, StateOpening, err
	}
	b := newBackend(db, cfg, opts)

	for _, st := range pipeline {
		b.logger.Debug().Stringer("state", st.state).Msg("bootstrap stage")
		if err := b.runStage(ctx, st); err != nil {
			db.Close()
			return nil, st.state, err
		}
	}
	return b, StateReady, nil
}

// runStage runs st once. A schema error triggers one schema init followed by
// one more run of the same stage.
func (b *Backend) runStage(ctx context.Context, st stage) error {
	err := st.run(b, ctx)
	if err == nil {
		return nil
	}
	var cve *types.ConstraintVerificationError
	if errors.As(err, &cve) || Classify(err) != SeverityRecoverableSchema {
		return err
	}
	b.logger.Warn().Err(err).Stringer("state", st.state).Msg("schema error; re-running schema init")
	if ierr := b.initSchema(ctx); ierr != nil {
		return ierr
	}
	return st.run(b, ctx)
}

// checkIntegrity runs PRAGMA integrity_check and turns any report other than
// a single "ok" into a *types.SevereCorruptionError.
func (b *Backend) checkIntegrity(ctx context.Context) error {
	rows, err := b.q.QueryContext(ctx, "PRAGMA integrity_check(20)")
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return fmt.Errorf("integrity check: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if len(lines) == 1 && strings.EqualFold(lines[0], "ok") {
		return nil
	}
	return &types.SevereCorruptionError{Path: b.config.DBPath, Detail: strings.Join(lines, "; ")}
}

// CheckIntegrity runs the integrity check on the live database.
func (b *Backend) CheckIntegrity(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.checkIntegrity(ctx)
}

func (b *Backend) initSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := b.q.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// migrateSchema adds missing columns to every known table and then builds
// the secondary indexes. A secondary index that cannot be built is logged
// and skipped.
func (b *Backend) migrateSchema(ctx context.Context) error {
	for _, schema := range expectedSchemas {
		report, err := MigrateTable(ctx, b.q, b.logger, schema)
		if err != nil {
			return err
		}
		if len(report.Added) > 0 || len(report.Failed) > 0 {
			b.logger.Info().
				Str("table", report.Table).
				Strs("added", report.Added).
				Int("failed", len(report.Failed)).
				Msg("schema drift repaired")
		}
	}
	for _, ddl := range indexDDL {
		if _, err := b.q.ExecContext(ctx, ddl); err != nil {
			if sev := Classify(err); sev == SeverityDiskFull || sev == SeveritySevere {
				return fmt.Errorf("creating index: %w", err)
			}
			b.logger.Warn().Err(err).Str("ddl", compactSQL(ddl)).Msg("could not create secondary index")
		}
	}
	return nil
}

func (b *Backend) ensureConstraints(ctx context.Context) error {
	for _, req := range requiredUniqueIndexes {
		if _, err := EnsureUniqueIndex(ctx, b.q, b.logger, req.Table, req.Columns); err != nil {
			return err
		}
	}
	return nil
}

// VerifyUniqueConstraints reports whether every required unique index is in
// place. It never modifies the schema.
func (b *Backend) VerifyUniqueConstraints(ctx context.Context) (types.UniqueConstraintReport, error) {
	if err := b.checkOpen(); err != nil {
		return types.UniqueConstraintReport{}, err
	}
	return verifyUniqueConstraints(ctx, b.q)
}
