package transcript

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendIsMonotonicAndOrdered(t *testing.T) {
	store := NewStore(nil)

	texts := []string{"hello", "hi", "", "how are you?"}
	for i, text := range texts {
		store.Append(RoleUser, "You", text, nil)
		require.Equal(t, i+1, store.Len())
	}

	got := make([]string, 0, len(texts))
	for _, msg := range store.Messages() {
		got = append(got, msg.Text)
		require.NotEmpty(t, msg.ID)
		require.False(t, msg.At.IsZero())
	}
	require.Equal(t, texts, got)
}

func TestAppendNotifiesObserverWithSnapshot(t *testing.T) {
	var snapshots [][]Message
	store := NewStore(func(messages []Message) {
		snapshots = append(snapshots, messages)
	})

	store.Append(RoleUser, "You", "hello", nil)
	store.Append(RoleBot, "Bot", "hi", []byte{1, 2, 3})

	require.Len(t, snapshots, 2)
	require.Len(t, snapshots[0], 1)
	require.Len(t, snapshots[1], 2)
	require.Equal(t, "hi", snapshots[1][1].Text)
	require.True(t, snapshots[1][1].HasAudio())
	require.False(t, snapshots[1][0].HasAudio())
}

func TestAppendCopiesAudio(t *testing.T) {
	store := NewStore(nil)
	audio := []byte{1, 2, 3}
	msg := store.Append(RoleBot, "Bot", "", audio)
	audio[0] = 9

	stored, ok := store.Find(msg.ID)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, stored.Audio)

	_, ok = store.Find("missing")
	require.False(t, ok)
}

func TestContextSnapshotIsTakenAtCallTime(t *testing.T) {
	store := NewStore(nil)
	require.Equal(t, "", store.Context())

	store.Append(RoleUser, "You", "one", nil)
	store.Append(RoleBot, "Bot", "two", nil)
	before := store.Context()

	store.Append(RoleUser, "You", "three", nil)

	require.Equal(t, "one\ntwo", before)
	require.Equal(t, "one\ntwo\nthree", store.Context())
}

func TestTextsIsRestartable(t *testing.T) {
	store := NewStore(nil)
	store.Append(RoleUser, "You", "a", nil)
	store.Append(RoleBot, "Bot", "b", nil)

	seq := store.Texts()
	require.Equal(t, []string{"a", "b"}, slices.Collect(seq))
	require.Equal(t, []string{"a", "b"}, slices.Collect(seq))

	for text := range seq {
		require.Equal(t, "a", text)
		break
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := NewStore(nil)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Append(RoleBot, "Bot", "reply", nil)
			_ = store.Context()
		}()
	}
	wg.Wait()

	require.Equal(t, 50, store.Len())
}
