////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestMetadata(t *testing.T) *Metadata {
	md, err := NewMetadata(newTestKV())
	require.NoError(t, err)
	return md
}

func TestMetadata_Reactions_Toggle(t *testing.T) {
	md := newTestMetadata(t)

	before, err := md.Reactions("msg1", "alice")
	require.NoError(t, err)

	require.NoError(t, md.AddReaction("msg1", "alice"))
	once, err := md.Reactions("msg1", "alice")
	require.NoError(t, err)
	require.Equal(t, 1, once.Count)
	require.True(t, once.ViewerReacted)

	require.NoError(t, md.AddReaction("msg1", "alice"))
	twice, err := md.Reactions("msg1", "alice")
	require.NoError(t, err)
	require.Equal(t, once, twice)

	require.NoError(t, md.AddReaction("msg1", "bob"))
	fromBob, err := md.Reactions("msg1", "bob")
	require.NoError(t, err)
	require.Equal(t, 2, fromBob.Count)
	require.True(t, fromBob.ViewerReacted)

	require.NoError(t, md.RemoveReaction("msg1", "bob"))
	require.NoError(t, md.RemoveReaction("msg1", "alice"))
	after, err := md.Reactions("msg1", "alice")
	require.NoError(t, err)
	require.Equal(t, before, after)

	// removing a reaction that does not exist is a no-op
	require.NoError(t, md.RemoveReaction("msg1", "alice"))
}

func TestMetadata_EmojiReactions(t *testing.T) {
	md := newTestMetadata(t)

	require.NoError(t, md.AddEmojiReaction("msg1", "alice", "👍"))
	require.NoError(t, md.AddEmojiReaction("msg1", "bob", "👍"))
	require.NoError(t, md.AddReaction("msg1", "carol"))

	summary, err := md.Reactions("msg1", "dave")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Count)
	require.False(t, summary.ViewerReacted)
	require.Equal(t, map[string]int{"👍": 2, DefaultReaction: 1},
		summary.Emojis)

	reactors, err := md.Reactors("msg1")
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob", "carol"}, reactors)

	for _, bad := range []string{"", "👍👍", "👍A", "hello"} {
		err = md.AddEmojiReaction("msg2", "alice", bad)
		require.True(t, errors.Is(err, ErrInvalidReaction), bad)
	}
}

func TestMetadata_Pins_LastWriteWins(t *testing.T) {
	md := newTestMetadata(t)

	_, pinned, err := md.GetPinned("alice", "bob")
	require.NoError(t, err)
	require.False(t, pinned)

	require.NoError(t, md.SetPinned("alice", "bob", "msgA"))
	require.NoError(t, md.SetPinned("alice", "bob", "msgB"))
	require.NoError(t, md.SetPinned("alice", "carol", "msgC"))

	id, pinned, err := md.GetPinned("alice", "bob")
	require.NoError(t, err)
	require.True(t, pinned)
	require.Equal(t, "msgB", id)

	// pins are per viewer
	_, pinned, err = md.GetPinned("bob", "alice")
	require.NoError(t, err)
	require.False(t, pinned)

	require.NoError(t, md.ClearPinned("alice", "bob"))
	require.NoError(t, md.ClearPinned("alice", "bob"))
	_, pinned, err = md.GetPinned("alice", "bob")
	require.NoError(t, err)
	require.False(t, pinned)

	require.Error(t, md.SetPinned("alice", "bob", ""))
}

func TestMetadata_PinnedChats(t *testing.T) {
	md := newTestMetadata(t)

	require.NoError(t, md.PinChat("alice", "bob", true))
	require.NoError(t, md.PinChat("alice", "carol", true))
	require.NoError(t, md.PinChat("alice", "carol", false))

	chats, err := md.PinnedChats("alice")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"bob": true}, chats)
}

func TestMetadata_Stars(t *testing.T) {
	md := newTestMetadata(t)
	store := newTestStore(t, newTestKV(), "alice")
	for i := 0; i < 3; i++ {
		_, err := store.Append(newTestMessage(i, "bob", "alice"))
		require.NoError(t, err)
	}

	require.NoError(t, md.Star("alice", "msg2"))
	require.NoError(t, md.Star("alice", "msg0"))
	require.NoError(t, md.Star("alice", "msg0"))
	require.NoError(t, md.Star("alice", "msg1"))
	require.NoError(t, md.Unstar("alice", "msg1"))

	starred, err := md.IsStarred("alice", "msg0")
	require.NoError(t, err)
	require.True(t, starred)

	ids, err := md.ListStarred("alice")
	require.NoError(t, err)
	require.Equal(t, []string{"msg0", "msg2"}, ids)

	// a deleted message stays starred but is skipped in the details
	require.NoError(t, store.Delete("msg2"))
	ids, err = md.ListStarred("alice")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	details, err := md.StarredDetails("alice", store)
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, "msg0", details[0].ID)

	others, err := md.ListStarred("bob")
	require.NoError(t, err)
	require.Empty(t, others)
}
