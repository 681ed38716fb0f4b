package store

import (
	"fmt"

	"github.com/franz/music-ledger/internal/util"
)

// Table names
const (
	MetaTable       = "Meta"
	PlayCountsTable = "PlayCounts"
	RatingsTable    = "Ratings"
)

// Tables lists every table owned by the store
var Tables = []string{MetaTable, PlayCountsTable, RatingsTable}

// Schema v1 - Meta plus the two append-only change logs.
// IF NOT EXISTS lets stores written before versioning adopt the version
// marker without losing data.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS Meta (
  PersistentID TEXT PRIMARY KEY,
  AlbumTitle TEXT,
  ArtistName TEXT,
  BitRate INTEGER,
  FileSize INTEGER,
  Genre TEXT,
  Kind TEXT,
  SampleRate INTEGER,
  Title TEXT,
  TotalTime INTEGER,
  Year INTEGER
);

-- (PersistentID, PlayCount) is unique: play counts only grow, so a value
-- seen before is never recorded twice
CREATE TABLE IF NOT EXISTS PlayCounts (
  PersistentID TEXT,
  Date INTEGER,
  PlayCount INTEGER,
  PRIMARY KEY (PersistentID, PlayCount)
);

-- Ratings may legitimately return to an earlier value
CREATE TABLE IF NOT EXISTS Ratings (
  PersistentID TEXT,
  Date INTEGER,
  Rating INTEGER
);
`

// migrations[i] upgrades the schema from version i to i+1
var migrations = []string{
	schemaV1,
	// Future migrations are appended here
}

// LatestSchemaVersion is the version a freshly migrated store reports
func LatestSchemaVersion() int {
	return len(migrations)
}

// SchemaVersion returns the persisted schema version
func (s *Store) SchemaVersion() (int, error) {
	v, err := s.Scalar("PRAGMA user_version")
	if err != nil {
		return 0, err
	}

	n, ok := v.AsInt()
	if !ok {
		return 0, nil
	}
	return int(n), nil
}

// migrate applies pending migrations inside the session transaction and
// advances user_version in the same transaction. Read-write sessions
// commit the result; dry runs keep it private.
func (s *Store) migrate() error {
	version, err := s.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	latest := LatestSchemaVersion()
	if version > latest {
		return fmt.Errorf("%w: %s has schema v%d, newest known is v%d",
			util.ErrSchemaMismatch, s.path, version, latest)
	}

	if version == latest {
		return nil
	}

	for v := version + 1; v <= latest; v++ {
		if err := s.ExecDDL(migrations[v-1]); err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", v, err)
		}
	}

	// PRAGMA arguments cannot be bound
	if err := s.ExecDDL(fmt.Sprintf("PRAGMA user_version = %d", latest)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	util.InfoLog("Migrated %s from schema v%d to v%d", s.path, version, latest)

	if s.mode == DryRun {
		return nil
	}

	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	s.tx = nil

	return s.begin()
}
