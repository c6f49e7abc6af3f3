// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianForge/services/forge/snapshot"
)

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	_, err = store.Load(ctx, "missing-app")
	assert.ErrorIs(t, err, ErrTreeNotFound)

	tree := New("badger-app", store)
	_, err = tree.Initialize(ctx, snapshot.FromText("content"), "init")
	require.NoError(t, err)
	_, err = tree.CreateVersion(ctx, snapshot.FromText("content v2"), "v2", "author", []string{"release"})
	require.NoError(t, err)

	reloaded, err := Load(ctx, "badger-app", store)
	require.NoError(t, err)

	head, err := reloaded.Head()
	require.NoError(t, err)
	assert.Equal(t, "content v2", head.Snapshot)
	assert.Equal(t, "author", head.Metadata.Author)
	assert.Equal(t, []string{"release"}, head.Metadata.Tags)
}

func TestOpenBadgerStore_RequiresPath(t *testing.T) {
	_, err := OpenBadgerStore(BadgerConfig{})
	assert.Error(t, err)
}

func TestBadgerStore_OnDisk(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(DefaultBadgerConfig(dir))
	require.NoError(t, err)

	ctx := context.Background()
	tree := New("disk-app", store)
	_, err = tree.Initialize(ctx, snapshot.FromText("durable"), "init")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen and read back.
	store, err = OpenBadgerStore(DefaultBadgerConfig(dir))
	require.NoError(t, err)
	defer store.Close()

	reloaded, err := Load(ctx, "disk-app", store)
	require.NoError(t, err)
	head, err := reloaded.Head()
	require.NoError(t, err)
	assert.Equal(t, "durable", head.Snapshot)
}
