package dedup

import (
	"database/sql"
	"fmt"
	"time"

	// Import the SQLite driver.
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRegistry persists hashes per job so a job can be resumed across runs
// without re-admitting content it already saved.
type SQLiteRegistry struct {
	db  *sql.DB
	job string
}

// OpenSQLite opens (creating if needed) the hash database at dbFile and scopes
// registrations to job.
func OpenSQLite(dbFile, job string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite3", dbFile)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS hashes (
		job TEXT NOT NULL,
		hash TEXT NOT NULL,
		path TEXT,
		seen_at DATETIME,
		PRIMARY KEY (job, hash)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating hashes table: %w", err)
	}

	return &SQLiteRegistry{db: db, job: job}, nil
}

func (r *SQLiteRegistry) RegisterHash(path string) (bool, error) {
	sum, err := HashFile(path)
	if err != nil {
		return false, err
	}

	res, err := r.db.Exec(`INSERT OR IGNORE INTO hashes (job, hash, path, seen_at) VALUES (?, ?, ?, ?)`,
		r.job, sum, path, time.Now().Format(time.RFC3339))
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *SQLiteRegistry) UnregisterHash(path string) error {
	sum, err := HashFile(path)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`DELETE FROM hashes WHERE job = ? AND hash = ?`, r.job, sum)
	return err
}

// Count is the number of hashes stored for the registry's job.
func (r *SQLiteRegistry) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM hashes WHERE job = ?`, r.job).Scan(&n)
	return n, err
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}
