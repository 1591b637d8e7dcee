package tasksync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("a red apple", "", "photo", "1:1")
	b := Fingerprint("a red apple", "", "photo", "1:1")
	assert.Equal(t, a, b)

	// Distinct params produce distinct fingerprints, including field-shift
	// ambiguity like ("ab","c") vs ("a","bc").
	assert.NotEqual(t, Fingerprint("ab", "c", "", ""), Fingerprint("a", "bc", "", ""))
	assert.NotEqual(t, a, Fingerprint("a red apple", "", "photo", "16:9"))
	assert.Len(t, a, 32)
}

func TestSubmissionLock_SecondHolderRejected(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	fp := Fingerprint("p", "", "", "")
	lock1 := NewSubmissionLock(client, fp)
	lock2 := NewSubmissionLock(client, fp)

	acquired, err := lock1.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = lock2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, acquired, "second holder should be rejected while lock is held")

	require.NoError(t, lock1.Unlock(ctx))

	acquired, err = lock2.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, acquired, "lock should be free after release")
}

func TestSubmissionLock_UnlockOnlyReleasesOwn(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	fp := Fingerprint("p2", "", "", "")
	lock1 := NewSubmissionLock(client, fp)
	lock2 := NewSubmissionLock(client, fp)

	acquired, err := lock1.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	// lock2 never acquired; its unlock must not free lock1's hold.
	require.NoError(t, lock2.Unlock(ctx))

	acquired, err = lock2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestSubmissionLock_NilClientDegrades(t *testing.T) {
	lock := NewSubmissionLock(nil, "fp")
	acquired, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, acquired)
	require.NoError(t, lock.Unlock(context.Background()))
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	registry := NewRegistry(client)

	fp := Fingerprint("a cat", "", "", "")
	require.NoError(t, registry.Register(ctx, Entry{
		TaskID:      "task-1",
		Fingerprint: fp,
		Status:      "pending",
	}))

	entry, err := registry.Lookup(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "task-1", entry.TaskID)
	assert.Equal(t, "pending", entry.Status)

	// An unknown fingerprint yields no entry.
	entry, err = registry.Lookup(ctx, Fingerprint("a dog", "", "", ""))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRegistry_StaleEntryIgnored(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	registry := NewRegistry(client).WithWindow(time.Minute)

	fp := Fingerprint("old", "", "", "")
	require.NoError(t, registry.Register(ctx, Entry{
		TaskID:      "task-old",
		Fingerprint: fp,
		Status:      "pending",
		Timestamp:   time.Now().Add(-2 * time.Minute),
	}))

	entry, err := registry.Lookup(ctx, fp)
	require.NoError(t, err)
	assert.Nil(t, entry, "entries beyond the dedup window do not count as in flight")
}

func TestRegistry_MarkTerminalClearsEntry(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()
	registry := NewRegistry(client)

	fp := Fingerprint("done", "", "", "")
	require.NoError(t, registry.Register(ctx, Entry{TaskID: "t", Fingerprint: fp, Status: "pending"}))
	require.NoError(t, registry.MarkTerminal(ctx, fp))

	entry, err := registry.Lookup(ctx, fp)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRegistry_NilClientNoOps(t *testing.T) {
	registry := NewRegistry(nil)
	ctx := context.Background()

	require.NoError(t, registry.Register(ctx, Entry{TaskID: "t", Fingerprint: "fp"}))
	entry, err := registry.Lookup(ctx, "fp")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBroadcaster_PublishSubscribe(t *testing.T) {
	client := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBroadcaster(client)
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	sent := TaskEvent{TaskID: "task-9", Status: "completed", ImageURL: "https://cdn.example.com/a.png"}
	require.NoError(t, b.Publish(ctx, sent))

	select {
	case got := <-events:
		assert.Equal(t, sent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast event")
	}
}
