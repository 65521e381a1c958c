package patchframe

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Asish-Kumar/WholeSlideImageSampler/internal/models"
)

const schema = `
CREATE TABLE patches (
	seq    INTEGER PRIMARY KEY,
	id     TEXT NOT NULL,
	w      INTEGER NOT NULL,
	h      INTEGER NOT NULL,
	class  INTEGER NOT NULL,
	level  INTEGER NOT NULL,
	size   INTEGER NOT NULL,
	parent TEXT NOT NULL
);
CREATE INDEX idx_patches_class ON patches(class);

CREATE TABLE sessions (
	session_id    TEXT PRIMARY KEY,
	image_id      TEXT NOT NULL,
	patches       INTEGER NOT NULL,
	rejected      INTEGER NOT NULL,
	seed          INTEGER NOT NULL,
	magnification REAL NOT NULL,
	patch_size    INTEGER NOT NULL,
	max_per_class INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);`

// Session is the sessions row of a SQLite frame.
type Session struct {
	ID        string
	ImageID   string
	Patches   int
	CreatedAt time.Time
	SessionMeta
}

// entropy is shared by every Save call, which may run from several batch
// workers at once.
var entropy = &ulid.LockedMonotonicReader{
	MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
}

func newSessionID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// saveSQLite builds the database next to dest and renames it into place, so
// a reader never opens a half-written frame.
func saveSQLite(dest string, f *Frame, meta SessionMeta) error {
	now := time.Now().UTC()
	sessionID := newSessionID(now)
	tmpPath := filepath.Join(filepath.Dir(dest), ".tmp-"+sessionID+".db")

	if err := writeSQLite(tmpPath, sessionID, now, f, meta); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("error moving patch frame into place: %w", err)
	}
	return nil
}

func writeSQLite(path, sessionID string, now time.Time, f *Frame, meta SessionMeta) error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return fmt.Errorf("failed to open patch frame database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO patches (seq, id, w, h, class, level, size, parent) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range f.Records {
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Col, r.Row, int(r.Class), r.Level, r.Size, r.Parent); err != nil {
			return fmt.Errorf("failed to insert patch %d: %w", i, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, image_id, patches, rejected, seed, magnification, patch_size, max_per_class, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, f.ImageID, len(f.Records), meta.Rejected, meta.Seed, meta.Magnification,
		meta.PatchSize, meta.MaxPerClass, now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit patch frame: %w", err)
	}
	return db.Close()
}

func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open patch frame: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch frame: %w", err)
	}
	return db, nil
}

func loadSQLite(path string) (*Frame, error) {
	ctx := context.Background()

	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var imageID string
	if err := db.QueryRowContext(ctx, `SELECT image_id FROM sessions LIMIT 1`).Scan(&imageID); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT id, w, h, class, level, size, parent FROM patches ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query patches: %w", err)
	}
	defer rows.Close()

	f := NewFrame(imageID)
	for rows.Next() {
		var (
			r     models.PatchRecord
			class int
		)
		if err := rows.Scan(&r.ID, &r.Col, &r.Row, &class, &r.Level, &r.Size, &r.Parent); err != nil {
			return nil, fmt.Errorf("failed to scan patch: %w", err)
		}
		r.Class = uint8(class)
		f.Append(r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read patches: %w", err)
	}
	return f, nil
}

// LoadSession returns the session row of a SQLite frame.
func LoadSession(path string) (*Session, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var (
		s       Session
		created string
	)
	err = db.QueryRowContext(context.Background(),
		`SELECT session_id, image_id, patches, rejected, seed, magnification, patch_size, max_per_class, created_at
		 FROM sessions LIMIT 1`).
		Scan(&s.ID, &s.ImageID, &s.Patches, &s.Rejected, &s.Seed, &s.Magnification,
			&s.PatchSize, &s.MaxPerClass, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if s.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("invalid session timestamp %q: %w", created, err)
	}
	return &s, nil
}
