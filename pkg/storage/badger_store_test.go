package storage

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/doc-outline/pkg/models"
	"github.com/Sriram-PR/doc-outline/pkg/toc"
	"github.com/Sriram-PR/doc-outline/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func successEntry(key, markdown string) *models.DocumentEntry {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.DocumentEntry{
		SourceKey:   key,
		URL:         "https://example.com/" + key + ".md",
		ContentHash: utils.CalculateStringSHA256(markdown),
		Sections:    toc.ExtractSections(markdown),
		Status:      models.DocumentStatusSuccess,
		FetchedAt:   now,
		LastAttempt: now,
	}
}

func TestNewBadgerStore_ReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, store1.Count())
	require.NoError(t, store1.SaveDocument(successEntry("acme", "# A\n")))
	require.NoError(t, store1.Close())

	store2, err := NewBadgerStore(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store2.Close() })

	assert.Equal(t, 1, store2.Count())
	status, entry, err := store2.GetDocument("acme")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusSuccess, status)
	require.NotNil(t, entry)
	assert.Equal(t, "a", entry.Sections[0].ID)
}

func TestSaveAndGetDocument(t *testing.T) {
	store := newTestStore(t)

	status, entry, err := store.GetDocument("missing")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusNotFound, status)
	assert.Nil(t, entry)

	want := successEntry("acme", "# Overview\n## Overview\n")
	require.NoError(t, store.SaveDocument(want))

	status, got, err := store.GetDocument("acme")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusSuccess, status)
	assert.Equal(t, want, got)

	// Overwrite does not change the count
	require.NoError(t, store.SaveDocument(want))
	assert.Equal(t, 1, store.Count())
}

func TestSaveDocument_Rejects(t *testing.T) {
	store := newTestStore(t)

	err := store.SaveDocument(&models.DocumentEntry{Status: models.DocumentStatusSuccess})
	assert.ErrorIs(t, err, utils.ErrDatabase)

	err = store.SaveDocument(&models.DocumentEntry{SourceKey: "k", Status: models.DocumentStatusNotFound})
	assert.ErrorIs(t, err, utils.ErrDatabase)
	assert.Equal(t, 0, store.Count())
}

func TestGetContentHash(t *testing.T) {
	store := newTestStore(t)

	_, exists, err := store.GetContentHash("acme")
	require.NoError(t, err)
	assert.False(t, exists)

	good := successEntry("acme", "# A\n")
	require.NoError(t, store.SaveDocument(good))

	hash, exists, err := store.GetContentHash("acme")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, good.ContentHash, hash)

	// A later failure keeps the last good hash
	failed := *good
	failed.Status = models.DocumentStatusFailure
	failed.ErrorType = "HTTP_5xx"
	require.NoError(t, store.SaveDocument(&failed))

	hash, exists, err = store.GetContentHash("acme")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, good.ContentHash, hash)
}

func TestListAndDeleteDocuments(t *testing.T) {
	store := newTestStore(t)
	for _, key := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, store.SaveDocument(successEntry(key, "# "+key+"\n")))
	}

	entries, err := store.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{entries[0].SourceKey, entries[1].SourceKey, entries[2].SourceKey})

	require.NoError(t, store.DeleteDocument("mid"))
	require.NoError(t, store.DeleteDocument("mid"), "deleting twice is fine")
	assert.Equal(t, 2, store.Count())

	status, _, err := store.GetDocument("mid")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusNotFound, status)
}

func TestListDocuments_ContextCancelled(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveDocument(successEntry("a", "# A\n")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.ListDocuments(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveDocument_Concurrent(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.SaveDocument(successEntry("shared", "# Shared\n")))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.Count())
}

func TestSaveAndDelete_ConcurrentCountMatchesKeys(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.SaveDocument(successEntry("shared", "# Shared\n")))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.DeleteDocument("shared"))
		}()
	}
	wg.Wait()

	scanned, err := store.countKeys()
	require.NoError(t, err)
	assert.Equal(t, scanned, store.Count())
}

func TestInMemoryStore(t *testing.T) {
	store, err := NewInMemoryStore(testLogger())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveDocument(successEntry("mem", "# M\n")))
	assert.Equal(t, 1, store.Count())
}

func TestRunGC_StopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop after cancel")
	}
}

func TestClose_Idempotent(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
