// Package store caches compiled mia images in SQLite, keyed by the hash of
// the source they were compiled from and the entry binding.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sadraskol/mia/vm"
	"github.com/sadraskol/mia/vm/dist"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("mia.store")

// ErrImageNotFound indicates no image is cached for a key.
var ErrImageNotFound = errors.New("image not found")

// Store is a SQLite-backed image cache. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	now    func() time.Time
}

// Stats summarizes the cache contents.
type Stats struct {
	Images int64
	Bytes  int64
	Hits   int64
}

// Open opens or creates the cache database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS images (
		source_hash TEXT NOT NULL,
		entry       TEXT NOT NULL,
		version     INTEGER NOT NULL,
		data        BLOB NOT NULL,
		hits        INTEGER NOT NULL DEFAULT 0,
		created_at  INTEGER NOT NULL,
		used_at     INTEGER NOT NULL,
		PRIMARY KEY (source_hash, entry)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened image cache %s", dbPath)
	return &Store{db: db, dbPath: dbPath, now: time.Now}, nil
}

// DefaultPath returns $MIA_CACHE, or images.db under the user cache
// directory.
func DefaultPath() (string, error) {
	if p := os.Getenv("MIA_CACHE"); p != "" {
		return p, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("getting cache dir: %w", err)
	}
	return filepath.Join(dir, "mia", "images.db"), nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(sourceHash [32]byte) string {
	return hex.EncodeToString(sourceHash[:])
}

// Put stores img, replacing any image for the same source and entry.
func (s *Store) Put(ctx context.Context, img *dist.Image) error {
	data, err := dist.MarshalImage(img)
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO images (source_hash, entry, version, data, hits, created_at, used_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		key(img.SourceHash), img.Entry, img.Version, data, now, now)
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	log.Debugf("cached image %s (%s, %d bytes)", key(img.SourceHash)[:12], img.Entry, len(data))
	return nil
}

// Get returns the image compiled from the source with sourceHash for entry.
// Images of another bytecode version are treated as missing.
func (s *Store) Get(ctx context.Context, sourceHash [32]byte, entry string) (*dist.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM images WHERE source_hash = ? AND entry = ? AND version = ?",
		key(sourceHash), entry, vm.BytecodeVersion).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("loading image: %w", err)
	}

	img, err := dist.UnmarshalImage(data)
	if err != nil {
		return nil, err
	}
	if err := img.Verify(sourceHash); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE images SET hits = hits + 1, used_at = ? WHERE source_hash = ? AND entry = ?",
		s.now().Unix(), key(sourceHash), entry)
	if err != nil {
		log.Warningf("updating cache statistics: %s", err)
	}
	return img, nil
}

// Delete removes the image for a source and entry.
func (s *Store) Delete(ctx context.Context, sourceHash [32]byte, entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM images WHERE source_hash = ? AND entry = ?", key(sourceHash), entry)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrImageNotFound
	}
	return nil
}

// Prune removes images not used since cutoff and images of other bytecode
// versions. It returns the number of images removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM images WHERE used_at < ? OR version != ?", cutoff.Unix(), vm.BytecodeVersion)
	if err != nil {
		return 0, fmt.Errorf("pruning images: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("pruned %d cached images", n)
	}
	return n, nil
}

// Stats reports the number of images, their total size and hit count.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0), COALESCE(SUM(hits), 0) FROM images").
		Scan(&st.Images, &st.Bytes, &st.Hits)
	if err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}
