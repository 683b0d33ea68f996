// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package checkpoint persists one RoundCheckpoint per validator hotkey
// under a well-known directory, atomically. Writes go to a temporary
// sibling file, fsync, then an atomic rename over the target — the same
// write-temp-then-rename protocol used throughout the Go ecosystem for
// durable single-file state. A per-hotkey OS advisory lock (gofrs/flock,
// named in ethereum-go-ethereum's go.mod for this exact purpose — see
// DESIGN.md) enforces the single-writer invariant of spec.md §4.2/§5.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

// ErrCorrupt is returned by Load when the checkpoint file exists but
// cannot be deserialized. The caller is expected to treat this as
// spec.md §7's CheckpointCorrupt: quarantine and start fresh.
var ErrCorrupt = errors.New("checkpoint: corrupt checkpoint file")

// Store persists RoundCheckpoint values under dir, one file per validator
// hotkey.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. dir is created if it does not exist.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: creating directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(hotkey string) string {
	return filepath.Join(s.dir, hotkey+".checkpoint.json")
}

func (s *Store) lockPath(hotkey string) string {
	return filepath.Join(s.dir, hotkey+".lock")
}

// Lock acquires the OS advisory lock for hotkey's checkpoint for the
// duration of the round. The caller must call the returned flock.Flock's
// Unlock when the round ends.
func (s *Store) Lock(hotkey string) (*flock.Flock, error) {
	fl := flock.New(s.lockPath(hotkey))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("checkpoint: acquiring lock for %s: %w", hotkey, err)
	}
	if !locked {
		return nil, fmt.Errorf("checkpoint: lock for %s already held by another process", hotkey)
	}
	return fl, nil
}

// Save atomically writes ckpt for hotkey: serialize to a temp sibling
// file, fsync, then rename over the target. SavedAt is stamped with now.
func (s *Store) Save(hotkey string, ckpt *roundtypes.RoundCheckpoint, now time.Time) error {
	ckpt.SavedAt = now

	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	target := s.path(hotkey)
	tmp := target + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("checkpoint: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("checkpoint: rename: %w", err)
	}
	return nil
}

// Load reads hotkey's checkpoint. It returns (nil, nil) when no checkpoint
// file exists (a fresh round). It returns ErrCorrupt, after quarantining
// the unreadable file, when the bytes exist but cannot be deserialized.
func (s *Store) Load(hotkey string) (*roundtypes.RoundCheckpoint, error) {
	target := s.path(hotkey)

	data, err := os.ReadFile(target)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read: %w", err)
	}

	var ckpt roundtypes.RoundCheckpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		if qErr := s.quarantine(hotkey); qErr != nil {
			return nil, fmt.Errorf("checkpoint: %w (quarantine also failed: %v)", ErrCorrupt, qErr)
		}
		return nil, ErrCorrupt
	}

	return &ckpt, nil
}

// quarantine renames a corrupt checkpoint file aside with a timestamp
// suffix so the controller can start fresh without losing the evidence.
func (s *Store) quarantine(hotkey string) error {
	target := s.path(hotkey)
	quarantined := fmt.Sprintf("%s.corrupt.%d", target, time.Now().UnixNano())
	return os.Rename(target, quarantined)
}

// Delete removes hotkey's checkpoint file, called after successful
// settlement.
func (s *Store) Delete(hotkey string) error {
	err := os.Remove(s.path(hotkey))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
