package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/focusblock/internal/database"
)

const (
	keyPrefix = "focusblock-"
	keyLayout = "20060102T150405Z"
)

// Manager takes SQLite snapshots, optionally sealed with a passphrase, and
// keeps the newest Keep of them at a Destination.
type Manager struct {
	db         *sql.DB
	dest       Destination
	passphrase string
	keep       int
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(db *sql.DB, dest Destination, passphrase string, keep int, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		db:         db,
		dest:       dest,
		passphrase: passphrase,
		keep:       keep,
		logger:     logger.With("component", "backup"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run snapshots the database and stores it.
func (m *Manager) Run(ctx context.Context) (Object, error) {
	tmpDir, err := os.MkdirTemp("", "focusblock-backup-")
	if err != nil {
		return Object{}, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return Object{}, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		return Object{}, fmt.Errorf("read snapshot: %w", err)
	}

	key := keyPrefix + m.now().UTC().Format(keyLayout) + ".db"
	if m.passphrase != "" {
		data, err = Seal(data, m.passphrase)
		if err != nil {
			return Object{}, fmt.Errorf("seal snapshot: %w", err)
		}
		key += ".enc"
	}

	if err := m.dest.Put(ctx, key, data); err != nil {
		return Object{}, err
	}
	m.logger.Info("backup stored", "key", key, "size", len(data))
	return Object{Key: key, Size: int64(len(data)), ModTime: m.now().UTC()}, nil
}

// List returns stored snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	all, err := m.dest.List(ctx)
	if err != nil {
		return nil, err
	}
	objs := all[:0]
	for _, o := range all {
		if strings.HasPrefix(o.Key, keyPrefix) {
			objs = append(objs, o)
		}
	}
	// Keys embed a sortable UTC timestamp.
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
	return objs, nil
}

// Prune deletes all but the newest Keep snapshots. Keep <= 0 keeps everything.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	if m.keep <= 0 {
		return 0, nil
	}
	objs, err := m.List(ctx)
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, o := range objs[min(m.keep, len(objs)):] {
		if err := m.dest.Delete(ctx, o.Key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// RunAndPrune is the scheduled form: one snapshot, then retention.
func (m *Manager) RunAndPrune(ctx context.Context) (int64, error) {
	if _, err := m.Run(ctx); err != nil {
		return 0, err
	}
	return m.Prune(ctx)
}

// Restore writes the snapshot stored under key to dstPath after an integrity
// check. An existing dstPath is only replaced when overwrite is set, and the
// server must not be running against it.
func (m *Manager) Restore(ctx context.Context, key, dstPath string, overwrite bool) error {
	if _, err := os.Stat(dstPath); err == nil && !overwrite {
		return fmt.Errorf("%s already exists", dstPath)
	}

	data, err := m.dest.Get(ctx, key)
	if err != nil {
		return err
	}
	if IsSealed(data) {
		if m.passphrase == "" {
			return errors.New("backup is encrypted and no passphrase is configured")
		}
		if data, err = Open(data, m.passphrase); err != nil {
			return err
		}
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write restore file: %w", err)
	}
	defer os.Remove(tmp)

	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}

	if err := os.Rename(tmp, dstPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dstPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := database.OpenNoMigrate(path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
