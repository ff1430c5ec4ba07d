package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/services/history"
	"github.com/NitinDabar/e2ee-chat/internal/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func entry(id string, peer domain.PeerID, at time.Duration, text string) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:        id,
		Peer:      peer,
		Direction: domain.DirectionIn,
		Plaintext: []byte(text),
		Timestamp: t0.Add(at),
	}
}

func texts(entries []domain.HistoryEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.Plaintext)
	}
	return out
}

func TestAppendOrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	h := history.New("alice", store.NewMemoryStore(), zerolog.Nop())

	for _, e := range []domain.HistoryEntry{
		entry("2", "bob", 2*time.Second, "second"),
		entry("1", "bob", time.Second, "first"),
		entry("3", "bob", 3*time.Second, "third"),
	} {
		added, err := h.Append(ctx, e)
		require.NoError(t, err)
		require.True(t, added)
	}

	got, err := h.Messages(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"first", "second", "third"}, texts(got))

	none, err := h.Messages(ctx, "carol")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestAppendIgnoresDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	h := history.New("alice", store.NewMemoryStore(), zerolog.Nop())

	added, err := h.Append(ctx, entry("01J", "bob", 0, "once"))
	require.NoError(t, err)
	require.True(t, added)
	added, err = h.Append(ctx, entry("01J", "bob", time.Minute, "twice"))
	require.NoError(t, err)
	require.False(t, added)

	got, err := h.Messages(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"once"}, texts(got))

	_, err = h.Append(ctx, domain.HistoryEntry{Peer: "bob"})
	require.Error(t, err)
}

func TestAppendKeepsNewestMessages(t *testing.T) {
	ctx := context.Background()
	h := history.New("alice", store.NewMemoryStore(), zerolog.Nop())

	total := history.MaxMessages + 5
	for i := range total {
		_, err := h.Append(ctx, entry(fmt.Sprint(i), "bob", time.Duration(i)*time.Second, fmt.Sprint("m", i)))
		require.NoError(t, err)
	}

	got, err := h.Messages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, got, history.MaxMessages)
	require.Equal(t, "m5", string(got[0].Plaintext))
	require.Equal(t, fmt.Sprint("m", total-1), string(got[len(got)-1].Plaintext))
}

func TestConversationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	h := history.New("alice", store.NewMemoryStore(), zerolog.Nop())

	_, err := h.Append(ctx, entry("a", "bob", time.Second, "hi bob"))
	require.NoError(t, err)
	_, err = h.Append(ctx, entry("b", "carol", 2*time.Second, "hi carol"))
	require.NoError(t, err)

	list, err := h.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, domain.PeerID("carol"), list[0].Peer)

	_, err = h.Append(ctx, entry("c", "bob", 3*time.Second, "bob again"))
	require.NoError(t, err)
	list, err = h.Conversations(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.PeerID("bob"), list[0].Peer)
	require.Equal(t, "bob again", string(list[0].LastMessage))
	require.Equal(t, t0.Add(3*time.Second), list[0].UpdatedAt)

	require.NoError(t, h.Clear(ctx, "bob"))
	list, err = h.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.PeerID("carol"), list[0].Peer)
	got, err := h.Messages(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestHistoryIsSealedAtRest(t *testing.T) {
	ctx := context.Background()
	inner := store.NewMemoryStore()
	sealed := store.NewSealed(inner, "correct horse battery", store.WithArgonParams(1, 8*1024, 1))
	h := history.New("alice", sealed, zerolog.Nop())

	_, err := h.Append(ctx, entry("1", "bob", 0, "secret plans"))
	require.NoError(t, err)

	raw, ok, err := inner.LoadSnapshot(ctx, "alice/history/bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, string(raw), "secret plans")

	reopened := history.New("alice", store.NewSealed(inner, "correct horse battery", store.WithArgonParams(1, 8*1024, 1)), zerolog.Nop())
	got, err := reopened.Messages(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, []string{"secret plans"}, texts(got))
}

func TestCorruptHistoryIsReported(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.StoreSnapshot(ctx, "alice/history/bob", []byte("{not json")))

	_, err := history.New("alice", st, zerolog.Nop()).Messages(ctx, "bob")
	require.ErrorIs(t, err, domain.ErrSerialization)
}
