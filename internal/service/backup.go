package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/saadjs/nutrisync/internal/db"
)

// BackupInfo describes a backup file and what it holds. Problem is set by
// ListBackups for files that cannot be restored.
type BackupInfo struct {
	Path          string    `json:"path"`
	Checksum      string    `json:"checksum"`
	CreatedAt     time.Time `json:"created_at"`
	SizeBytes     int64     `json:"size_bytes"`
	SchemaVersion int       `json:"schema_version"`
	Entries       int       `json:"entries"`
	LastDay       string    `json:"last_day,omitempty"`
	Problem       string    `json:"problem,omitempty"`
}

// CreateBackup writes a consistent snapshot of the open database with
// VACUUM INTO, so a sync writing through the same handle cannot tear it.
func CreateBackup(ctx context.Context, sqldb *sql.DB, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup output path is required")
	}
	if _, err := os.Stat(outPath); err == nil {
		return BackupInfo{}, fmt.Errorf("backup %s already exists", outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := sqldb.ExecContext(ctx, `VACUUM INTO ?`, outPath); err != nil {
		return BackupInfo{}, fmt.Errorf("snapshot database: %w", err)
	}
	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := os.WriteFile(outPath+".sha256", []byte(checksum+"\n"), 0o644); err != nil {
		return BackupInfo{}, fmt.Errorf("write checksum file: %w", err)
	}
	info, err := InspectBackup(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	info.Checksum = checksum
	return info, nil
}

// InspectBackup opens path and reports its schema version and log contents.
// Files that are not nutrisync databases, or were written by a newer
// schema, fail with ErrNotBackup.
func InspectBackup(path string) (BackupInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return BackupInfo{}, fmt.Errorf("stat backup: %w", err)
	}
	info := BackupInfo{Path: path, CreatedAt: st.ModTime(), SizeBytes: st.Size()}

	sqldb, err := db.Open(path)
	if err != nil {
		return info, fmt.Errorf("%w: %s: %v", ErrNotBackup, path, err)
	}
	defer sqldb.Close()

	var tables int
	if err := sqldb.QueryRow(`
SELECT COUNT(1) FROM sqlite_master
WHERE type = 'table' AND name IN ('schema_migrations', 'log_entries')
`).Scan(&tables); err != nil {
		return info, fmt.Errorf("%w: %s: %v", ErrNotBackup, path, err)
	}
	if tables != 2 {
		return info, fmt.Errorf("%w: %s has no log tables", ErrNotBackup, path)
	}

	if info.SchemaVersion, err = db.SchemaVersion(sqldb); err != nil {
		return info, err
	}
	if info.SchemaVersion > db.LatestVersion() {
		return info, fmt.Errorf("%w: %s has schema version %d, newer than %d", ErrNotBackup, path, info.SchemaVersion, db.LatestVersion())
	}

	var lastDay sql.NullString
	if err := sqldb.QueryRow(`SELECT COUNT(1), MAX(date) FROM log_entries`).Scan(&info.Entries, &lastDay); err != nil {
		return info, fmt.Errorf("read backup entries: %w", err)
	}
	info.LastDay = lastDay.String
	return info, nil
}

// RestoreBackup verifies backupPath and replaces dbPath with it. The copy
// lands next to dbPath first and is renamed into place.
func RestoreBackup(backupPath, dbPath string, force bool) (BackupInfo, error) {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return BackupInfo{}, fmt.Errorf("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return BackupInfo{}, fmt.Errorf("target db already exists; use --force to overwrite")
		}
	}
	checksum := ""
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return BackupInfo{}, err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return BackupInfo{}, fmt.Errorf("backup checksum mismatch")
		}
		checksum = actual
	}
	info, err := InspectBackup(backupPath)
	if err != nil {
		return info, err
	}
	info.Checksum = checksum

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return info, fmt.Errorf("create db directory: %w", err)
	}
	tmp := dbPath + ".restore"
	if err := copyFile(backupPath, tmp); err != nil {
		_ = os.Remove(tmp)
		return info, err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		_ = os.Remove(tmp)
		return info, fmt.Errorf("replace database: %w", err)
	}
	return info, nil
}

// ListBackups returns every .db file in dir, newest first. Unreadable or
// foreign files are listed with Problem set.
func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}
	out := make([]BackupInfo, 0)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".db") {
			continue
		}
		full := filepath.Join(dir, f.Name())
		info, err := InspectBackup(full)
		if err != nil {
			info.Path = full
			info.Problem = err.Error()
		}
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			info.Checksum = strings.TrimSpace(string(b))
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync destination file: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
