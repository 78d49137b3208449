// Package mediacache manages the scratch directory that downloaded chat
// media lands in before transcription. Files are transient; Cleanup
// enforces age, count, and total-size bounds.
package mediacache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

type CleanupPolicy struct {
	MaxAge        time.Duration
	MaxFiles      int
	MaxTotalBytes int64
}

type entry struct {
	path    string
	modTime time.Time
	size    int64
}

// Ensure creates dir with 0700 perms and refuses symlinks, foreign
// ownership, and looser permissions it cannot fix.
func Ensure(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("empty media cache dir")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	dir = abs

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	fi, err := os.Lstat(dir)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing symlink path: %s", dir)
	}
	if !fi.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return fmt.Errorf("unsupported stat for: %s", dir)
	}
	if st.Uid != uint32(os.Getuid()) {
		return fmt.Errorf("media cache dir not owned by current user (owner=%d): %s", st.Uid, dir)
	}
	if fi.Mode().Perm() != 0o700 {
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("media cache dir has insecure perms (%#o) and chmod failed: %w", fi.Mode().Perm(), err)
		}
	}
	return nil
}

// Cleanup removes expired files first, then prunes oldest-first until the
// count and total-size bounds hold. A zero policy field disables that bound.
func Cleanup(dir string, policy CleanupPolicy) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("missing media cache dir")
	}
	if policy.MaxAge <= 0 && policy.MaxFiles <= 0 && policy.MaxTotalBytes <= 0 {
		return nil
	}
	now := time.Now()

	var kept []entry
	total := int64(0)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if policy.MaxAge > 0 && now.Sub(info.ModTime()) > policy.MaxAge {
			_ = os.Remove(path)
			return nil
		}
		kept = append(kept, entry{path: path, modTime: info.ModTime(), size: info.Size()})
		total += info.Size()
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return walkErr
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
	overBudget := func() bool {
		if policy.MaxFiles > 0 && len(kept) > policy.MaxFiles {
			return true
		}
		if policy.MaxTotalBytes > 0 && total > policy.MaxTotalBytes {
			return true
		}
		return false
	}
	for overBudget() && len(kept) > 0 {
		old := kept[0]
		kept = kept[1:]
		total -= old.size
		_ = os.Remove(old.path)
	}
	return nil
}
