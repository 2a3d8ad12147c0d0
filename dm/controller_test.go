////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/dmsync/stoppable"
)

type testController struct {
	*Controller
	store   *LocalStore
	remote  *mockRemote
	channel *mockChannel
	gate    *mockGate
}

func newTestController(t *testing.T, identity string, remote *mockRemote,
	channel *mockChannel, gate FriendGate) *Controller {
	kv := newTestKV()
	store := newTestStore(t, kv, identity)
	md, err := NewMetadata(kv)
	require.NoError(t, err)
	r, err := NewReconciler(identity, remote, store, kv,
		GetDefaultReconcilerParams())
	require.NoError(t, err)

	c, err := NewController(ControllerParams{
		Identity:   identity,
		Store:      store,
		Remote:     remote,
		Gate:       gate,
		Channel:    channel,
		Metadata:   md,
		Reconciler: r,
	})
	require.NoError(t, err)
	return c
}

func newGatedController(t *testing.T, status FriendshipStatus) testController {
	remote := newMockRemote()
	channel := newMockChannel()
	gate := &mockGate{status: status}
	c := newTestController(t, "alice", remote, channel, gate)
	return testController{
		Controller: c,
		store:      c.store.(*LocalStore),
		remote:     remote,
		channel:    channel,
		gate:       gate,
	}
}

func TestController_Send_PolicyGate(t *testing.T) {
	ctx := context.Background()
	for _, status := range []FriendshipStatus{FriendNone, FriendPending} {
		tc := newGatedController(t, status)
		require.False(t, tc.CanSend(ctx, "bob"))

		_, err := tc.Send(ctx, "bob", "hello")
		require.True(t, errors.Is(err, ErrNotFriends), status.String())

		all, err := tc.store.All()
		require.NoError(t, err)
		require.Empty(t, all)
		require.Zero(t, tc.channel.publishCount())
	}

	tc := newGatedController(t, FriendAccepted)
	tc.gate.err = errors.New("friend service is down")
	_, err := tc.Send(ctx, "bob", "hello")
	require.True(t, errors.Is(err, ErrNotFriends))
}

func TestController_Send(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)
	tc.channel.fail = true

	msg, err := tc.Send(ctx, "bob", "hello")
	require.NoError(t, err)
	require.Equal(t, "alice", msg.SenderID)
	require.Equal(t, TextType, msg.Type)

	// visible locally even though publishing failed
	convo, err := tc.History("bob")
	require.NoError(t, err)
	require.Len(t, convo, 1)
	require.Equal(t, msg.ID, convo[0].ID)

	// persisted at the remote for offline delivery
	received, err := tc.remote.FetchReceived(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, received, 1)

	reply, err := tc.Reply(ctx, "bob", "and again", msg.ID)
	require.NoError(t, err)
	require.True(t, reply.IsReply())
	require.Equal(t, msg.ID, reply.ReplyToID)
}

func TestController_Send_Invalid(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)

	_, err := tc.Send(ctx, "bob", "   ")
	require.Equal(t, ErrEmptyMessage, err)

	for _, peer := range []string{"", BroadcastReceiver, "alice"} {
		_, err = tc.Send(ctx, peer, "hi")
		require.True(t, errors.Is(err, ErrInvalidPeer), peer)
	}
}

func TestController_Send_StoreFailure(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)
	tc.Controller.store = &failingStore{tc.store}

	_, err := tc.Send(ctx, "bob", "hello")
	require.Error(t, err)
	require.Zero(t, tc.channel.publishCount())
}

func TestController_OpenClose(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)
	require.Equal(t, Closed, tc.State())

	// one message cached, one only at the remote
	_, err := tc.store.Append(newTestMessage(1, "bob", "alice"))
	require.NoError(t, err)
	require.NoError(t, tc.remote.StoreMessage(ctx,
		newTestMessage(2, "bob", "alice")))
	require.NoError(t, tc.reads.Rederive())
	require.Equal(t, 1, tc.Unread()["bob"])

	history, err := tc.Open(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, Open, tc.State())
	peer, active := tc.ActivePeer()
	require.True(t, active)
	require.Equal(t, "bob", peer)

	for _, m := range history {
		require.True(t, m.Read, m.ID)
	}
	require.Empty(t, tc.Unread())

	tc.Close(ctx)
	require.Equal(t, Closed, tc.State())
	_, active = tc.ActivePeer()
	require.False(t, active)

	_, err = tc.Open(ctx, "")
	require.True(t, errors.Is(err, ErrInvalidPeer))
}

func TestController_Metadata(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)

	msg, err := tc.Send(ctx, "bob", "pin me")
	require.NoError(t, err)

	require.NoError(t, tc.React(msg.ID, ""))
	require.NoError(t, tc.React(msg.ID, "🎆"))
	summary, err := tc.Reactions(msg.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Count)
	require.NoError(t, tc.Unreact(msg.ID))

	require.NoError(t, tc.Pin("bob", msg.ID))
	pinned, ok, err := tc.Pinned("bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, msg.Content, pinned.Content)

	require.NoError(t, tc.Star(msg.ID))
	starred, err := tc.Starred()
	require.NoError(t, err)
	require.Len(t, starred, 1)

	require.NoError(t, tc.PinChat("bob", true))
	chats, err := tc.PinnedChats()
	require.NoError(t, err)
	require.True(t, chats["bob"])

	// deleting leaves the pin and star dangling
	require.NoError(t, tc.Delete(msg.ID))
	_, ok, err = tc.Pinned("bob")
	require.NoError(t, err)
	require.False(t, ok)
	starred, err = tc.Starred()
	require.NoError(t, err)
	require.Empty(t, starred)

	require.NoError(t, tc.Unpin("bob"))
	require.NoError(t, tc.Unstar(msg.ID))
}

func TestController_Start(t *testing.T) {
	tc := newGatedController(t, FriendAccepted)

	stop, err := tc.Start()
	require.NoError(t, err)
	require.True(t, stop.IsRunning())

	payload, err := NewEnvelope(newTestMessage(1, "bob", "alice")).Encode()
	require.NoError(t, err)
	tc.channel.mux.Lock()
	handlers := tc.channel.handlers["alice"]
	tc.channel.mux.Unlock()
	require.Len(t, handlers, 1)
	handlers[0](payload)

	_, exists := tc.store.Get("msg1")
	require.True(t, exists)
	require.Equal(t, 1, tc.Unread()["bob"])

	require.NoError(t, stop.Close())
	require.NoError(t, stoppable.WaitForStopped(stop, time.Second))
}

func TestConversationState_String(t *testing.T) {
	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "opening", Opening.String())
	require.Equal(t, "open", Open.String())
	require.Contains(t, ConversationState(7).String(), "INVALID")
}

// Messages pulled in by the background reconciler are reflected in the
// unread counts without any conversation being opened.
func TestController_UnreadAfterBackgroundSync(t *testing.T) {
	ctx := context.Background()
	tc := newGatedController(t, FriendAccepted)
	for i := 0; i < 3; i++ {
		require.NoError(t, tc.remote.StoreMessage(ctx,
			newTestMessage(i, "bob", "alice")))
	}

	report := tc.reconciler.Reconcile(ctx)
	require.Equal(t, 3, report.Appended)

	require.Equal(t, map[string]int{"bob": 3}, tc.Unread())
	all, err := tc.store.All()
	require.NoError(t, err)
	unread := 0
	for _, m := range all {
		if !m.Read {
			unread++
		}
	}
	require.Equal(t, unread, tc.reads.Total())
}

// Messages sent within the same millisecond keep their order after the store
// is reloaded from disk.
func TestController_Send_OrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := newTestKV()
	store := newTestStore(t, kv, "alice")
	md, err := NewMetadata(kv)
	require.NoError(t, err)
	c, err := NewController(ControllerParams{
		Identity: "alice",
		Store:    store,
		Remote:   newMockRemote(),
		Gate:     &mockGate{status: FriendAccepted},
		Channel:  newMockChannel(),
		Metadata: md,
	})
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		msg, err := c.Send(ctx, "bob", "hello")
		require.NoError(t, err)
		require.Zero(t, msg.Timestamp.Nanosecond()%int(time.Millisecond))
	}

	before, err := store.Query("bob", "alice")
	require.NoError(t, err)

	reloaded := newTestStore(t, kv, "alice")
	after, err := reloaded.Query("bob", "alice")
	require.NoError(t, err)

	require.Len(t, after, len(before))
	for i := range before {
		require.Equal(t, before[i].ID, after[i].ID)
		require.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}
}
