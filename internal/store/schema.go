package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"castkeep/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migration upgrades the layout to version. after, when set, runs once the
// step has committed; its failure is logged and does not undo the step.
type migration struct {
	version int
	file    string
	after   func(*Store) error
}

// migrations is append-only. Versions must be strictly increasing.
var migrations = []migration{
	{version: 1, file: "0001_initial.sql"},
	{version: 2, file: "0002_podcast_state.sql"},
	// Scratch files were renamed at version 3; old ones can never match.
	{version: 3, file: "0003_episode_length.sql", after: (*Store).purgeScratch},
	{version: 4, file: "0004_failure_tracking.sql"},
	{version: 5, file: "0005_episode_guid.sql"},
}

// CurrentSchemaVersion is the highest schema version this release understands.
// It must equal the version of the last entry in migrations.
const CurrentSchemaVersion = 5

func (s *Store) ensureMarker(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schemaver (version INTEGER)"); err != nil {
			return fmt.Errorf("ensure schemaver: %w", err)
		}
		var rows int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM schemaver").Scan(&rows); err != nil {
			return fmt.Errorf("count schemaver rows: %w", err)
		}
		if rows > 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schemaver (version) VALUES (0)"); err != nil {
			return fmt.Errorf("initialize schemaver: %w", err)
		}
		return nil
	})
}

// CurrentVersion returns the schema version recorded in the store.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schemaver LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}

// Upgrade applies every migration above the recorded version, in order.
func (s *Store) Upgrade(ctx context.Context) error {
	return s.upgradeTo(ctx, CurrentSchemaVersion)
}

func (s *Store) upgradeTo(ctx context.Context, target int) error {
	current, err := s.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("%w: database is at version %d but this castkeep supports up to %d; a newer castkeep is required",
			ErrUnrecognizedSchemaVersion, current, CurrentSchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current || m.version > target {
			continue
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
		s.logger.Info("schema upgraded",
			logging.Int("from_version", current),
			logging.Int("to_version", m.version),
			logging.String(logging.FieldEventType, "schema_upgraded"),
		)
		current = m.version

		if m.after != nil {
			if err := m.after(s); err != nil {
				logging.WarnWithContext(s.logger, "post-migration step failed", "schema_side_effect_failed",
					logging.Int("version", m.version),
					logging.Error(err),
					logging.String(logging.FieldImpact, "schema version advanced; cleanup was skipped"),
				)
			}
		}
	}
	return nil
}

func (s *Store) applyMigration(ctx context.Context, m migration) error {
	body, err := migrationFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.file, err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE schemaver SET version = ?", m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		return nil
	})
}

// purgeScratch empties the scratch directory but keeps the directory itself.
func (s *Store) purgeScratch() error {
	if s.scratchDir == "" {
		return nil
	}
	entries, err := os.ReadDir(s.scratchDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read scratch dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.scratchDir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
