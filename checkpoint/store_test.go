// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autoppia/autoppia-web-agents-subnet-sub000/roundtypes"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	ckpt := roundtypes.NewRoundCheckpoint(roundtypes.RoundIdentity{
		RoundNumber:     7,
		ValidatorHotkey: "hot1",
	}, nil)
	ckpt.CompletedPairs.Add(roundtypes.Pair{MinerUID: 1, TaskID: "t1"})
	ckpt.PhasesDone.Add(roundtypes.PhaseHandshakeReported)

	require.NoError(t, store.Save("hot1", ckpt, time.Now()))

	loaded, err := store.Load("hot1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, int64(7), loaded.Identity.RoundNumber)
	require.True(t, loaded.CompletedPairs.Contains(roundtypes.Pair{MinerUID: 1, TaskID: "t1"}))
	require.True(t, loaded.PhasesDone.Contains(roundtypes.PhaseHandshakeReported))
}

func TestLoadMissingReturnsNilNil(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	loaded, err := store.Load("nobody")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLoadCorruptQuarantines(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "hot1.checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err = store.Load("hot1")
	require.ErrorIs(t, err, ErrCorrupt)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "corrupt file should have been renamed aside")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			found = true
		}
	}
	require.True(t, found, "a quarantined copy of the corrupt file should remain in the directory")
}

func TestDeleteAfterSettlement(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	ckpt := roundtypes.NewRoundCheckpoint(roundtypes.RoundIdentity{}, nil)
	require.NoError(t, store.Save("hot1", ckpt, time.Now()))
	require.NoError(t, store.Delete("hot1"))

	loaded, err := store.Load("hot1")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLockIsExclusivePerHotkey(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	lock1, err := store.Lock("hot1")
	require.NoError(t, err)
	defer lock1.Unlock()

	_, err = store.Lock("hot1")
	require.Error(t, err)

	lock2, err := store.Lock("hot2")
	require.NoError(t, err)
	defer lock2.Unlock()
}
