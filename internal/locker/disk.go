package locker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Disk is the disk-based locker: one file per resource in a shared
// directory (spec.md §5).
type Disk struct {
	Dir string
}

func NewDisk(dir string) *Disk { return &Disk{Dir: dir} }

func (d *Disk) path(key string) string { return filepath.Join(d.Dir, key+".lck") }

// Acquire creates the lock file exclusively. If it already exists, its
// age is compared against timeout to decide Locked vs a stale lock that
// should be force-removed by the caller (WaitAndAcquire handles the
// force-removal; Acquire only reports the current state).
func (d *Disk) Acquire(ctx context.Context, key string, timeout time.Duration) (Outcome, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return Locked, fmt.Errorf("disk locker: mkdir: %w", err)
	}
	path := d.path(key)
	token := uuid.NewString()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			info, statErr := os.Stat(path)
			if statErr != nil {
				if os.IsNotExist(statErr) {
					return NoEntry, nil
				}
				return Locked, fmt.Errorf("disk locker: stat: %w", statErr)
			}
			if time.Since(info.ModTime()) > timeout {
				return Locked, nil // caller force-removes via Release then retries
			}
			return Locked, nil
		}
		return Locked, fmt.Errorf("disk locker: create: %w", err)
	}
	_, _ = f.WriteString(token)
	f.Close()
	return Acquired, nil
}

func (d *Disk) Ping(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(d.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Disk) Release(ctx context.Context, key string) error {
	err := os.Remove(d.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("disk locker: release: %w", err)
	}
	return nil
}

func (d *Disk) ClearAllLocks(ctx context.Context) error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".lck" {
			os.Remove(filepath.Join(d.Dir, e.Name()))
		}
	}
	return nil
}
