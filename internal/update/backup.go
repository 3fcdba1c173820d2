package update

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/DDT-TDD/quizdd-engine/internal/apperr"
)

const backupPrefix = "backup_"
const backupTimestampLayout = "20060102_150405"

// CreateBackup copies the current content tree into
// backups/backup_<yyyymmdd_HHMMSS>, then prunes backups older than the
// configured retention window (spec.md §4.9).
func (in *Installer) CreateBackup() error {
	if _, err := os.Stat(in.contentDir); os.IsNotExist(err) {
		// nothing to back up yet; an empty content tree is not a failure.
		return nil
	}

	name := backupPrefix + time.Now().UTC().Format(backupTimestampLayout)
	dest := filepath.Join(in.backupDir, name)
	if err := copyTree(in.contentDir, dest); err != nil {
		return apperr.IO("could not create backup", err)
	}
	return in.cleanupOldBackups()
}

// ListBackups returns every backup_* directory name, lexicographically
// ascending (spec.md §4.9; the timestamp layout makes lexicographic and
// chronological order coincide).
func (in *Installer) ListBackups() ([]string, error) {
	entries, err := os.ReadDir(in.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.IO("could not list backups", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RollbackToBackup restores the most recent backup_* directory into the
// content tree. It fails if no backups exist.
func (in *Installer) RollbackToBackup() error {
	backups, err := in.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		return apperr.UpdateFailed("no backups available to roll back to", nil)
	}

	latest := backups[len(backups)-1]
	src := filepath.Join(in.backupDir, latest)
	if err := os.RemoveAll(in.contentDir); err != nil {
		return apperr.IO("could not clear content tree before rollback", err)
	}
	if err := copyTree(src, in.contentDir); err != nil {
		return apperr.IO("could not restore backup", err)
	}
	return nil
}

// cleanupOldBackups removes backup_* directories whose embedded
// timestamp is older than the retention window.
func (in *Installer) cleanupOldBackups() error {
	if in.backupRetention <= 0 {
		return nil
	}
	backups, err := in.ListBackups()
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-in.backupRetention)
	for _, name := range backups {
		ts, err := time.Parse(backupTimestampLayout, strings.TrimPrefix(name, backupPrefix))
		if err != nil {
			continue // not a name this installer produced; leave it alone
		}
		if ts.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(in.backupDir, name)); err != nil {
				return apperr.IO(fmt.Sprintf("could not remove expired backup %q", name), err)
			}
		}
	}
	return nil
}

// copyTree copies src into dst using an explicit directory worklist
// (a stack, not recursion) per the preserved source pattern.
func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	worklist := []string{""}
	for len(worklist) > 0 {
		rel := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		srcDir := filepath.Join(src, rel)
		entries, err := os.ReadDir(srcDir)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			relPath := filepath.Join(rel, entry.Name())
			if entry.IsDir() {
				if err := os.MkdirAll(filepath.Join(dst, relPath), 0o755); err != nil {
					return err
				}
				worklist = append(worklist, relPath)
				continue
			}
			if err := copyFile(filepath.Join(srcDir, entry.Name()), filepath.Join(dst, relPath)); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
