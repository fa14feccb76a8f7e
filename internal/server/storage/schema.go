package storage

import "time"

// SetupRecord is an opaque match configuration blob
type SetupRecord struct {
	MatchID   string    `db:"match_id"`
	SetupData []byte    `db:"setup_data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StatsRecord is the single-row game counter
type StatsRecord struct {
	TotalGames  int64     `db:"total_games"`
	LastUpdated time.Time `db:"last_updated"`
}

// InvocationRecord represents one live makeMove call
type InvocationRecord struct {
	InvocationID  int64     `db:"invocation_id"`
	Class         string    `db:"class"`
	ArchiveGroup  string    `db:"archive_group"` // empty unless class is archive
	ArtifactID    string    `db:"artifact_id"`
	BoardSize     int       `db:"board_size"`
	Turn          string    `db:"turn"`
	Row           int       `db:"move_row"`
	Col           int       `db:"move_col"`
	ReturnValue   int       `db:"return_value"`
	ElapsedMicros int64     `db:"elapsed_us"`
	TimedOut      bool      `db:"timed_out"`
	Fault         string    `db:"fault"`
	InvokedAt     time.Time `db:"invoked_at"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS setups (
	match_id TEXT PRIMARY KEY,
	setup_data BLOB NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stats (
	id INTEGER PRIMARY KEY CHECK(id = 1),
	total_games INTEGER NOT NULL DEFAULT 0,
	last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT OR IGNORE INTO stats (id, total_games) VALUES (1, 0);

CREATE TABLE IF NOT EXISTS invocations (
	invocation_id INTEGER PRIMARY KEY AUTOINCREMENT,
	class TEXT NOT NULL CHECK(class IN ('candidate', 'cache', 'archive')),
	archive_group TEXT NOT NULL DEFAULT '',
	artifact_id TEXT NOT NULL,
	board_size INTEGER NOT NULL,
	turn TEXT NOT NULL CHECK(turn IN ('B', 'W')),
	move_row INTEGER NOT NULL,
	move_col INTEGER NOT NULL,
	return_value INTEGER NOT NULL,
	elapsed_us INTEGER NOT NULL,
	timed_out INTEGER NOT NULL DEFAULT 0,
	fault TEXT NOT NULL DEFAULT '',
	invoked_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_invocations_artifact ON invocations(class, artifact_id);
CREATE INDEX IF NOT EXISTS idx_invocations_invoked_at ON invocations(invoked_at);
`
