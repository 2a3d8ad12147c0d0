////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/dmsync/stoppable"
	"gitlab.com/elixxir/dmsync/storage/versioned"
)

// mockChannel delivers published envelopes synchronously to every handler
// subscribed on the same mockChannel.
type mockChannel struct {
	handlers   map[string][]PayloadHandler
	broadcasts []PayloadHandler
	published  int
	fail       bool
	mux        sync.Mutex
}

func newMockChannel() *mockChannel {
	return &mockChannel{handlers: make(map[string][]PayloadHandler)}
}

func (mc *mockChannel) Publish(_ context.Context, recipientID string,
	e Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}

	mc.mux.Lock()
	if mc.fail {
		mc.mux.Unlock()
		return errors.New("channel is down")
	}
	mc.published++
	handlers := append([]PayloadHandler{}, mc.handlers[recipientID]...)
	mc.mux.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (mc *mockChannel) PublishBroadcast(_ context.Context, e Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return err
	}

	mc.mux.Lock()
	mc.published++
	handlers := append([]PayloadHandler{}, mc.broadcasts...)
	mc.mux.Unlock()

	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (mc *mockChannel) Subscribe(identityID string, handler PayloadHandler) (
	stoppable.Stoppable, error) {
	mc.mux.Lock()
	idx := len(mc.handlers[identityID])
	mc.handlers[identityID] = append(mc.handlers[identityID], handler)
	mc.mux.Unlock()

	return mc.subscription("sub-"+identityID, func() {
		mc.handlers[identityID][idx] = func([]byte) {}
	}), nil
}

func (mc *mockChannel) SubscribeBroadcasts(handler PayloadHandler) (
	stoppable.Stoppable, error) {
	mc.mux.Lock()
	idx := len(mc.broadcasts)
	mc.broadcasts = append(mc.broadcasts, handler)
	mc.mux.Unlock()

	return mc.subscription("sub-broadcasts", func() {
		mc.broadcasts[idx] = func([]byte) {}
	}), nil
}

func (mc *mockChannel) subscription(name string,
	unsubscribe func()) stoppable.Stoppable {
	s := stoppable.NewSingle(name)
	go func() {
		<-s.Quit()
		mc.mux.Lock()
		unsubscribe()
		mc.mux.Unlock()
		s.ToStopped()
	}()
	return s
}

func (mc *mockChannel) publishCount() int {
	mc.mux.Lock()
	defer mc.mux.Unlock()
	return mc.published
}

// mockRemote is a DummyRemote whose calls can be made to fail or be
// intercepted.
type mockRemote struct {
	*DummyRemote

	failFetch bool
	fetches   int32

	// beforeMarkRead runs at the start of every MarkRead call
	beforeMarkRead func(senderID, viewerID string)
}

func newMockRemote() *mockRemote {
	return &mockRemote{DummyRemote: NewDummyRemote()}
}

func (mr *mockRemote) FetchReceived(ctx context.Context, identityID string) (
	[]Message, error) {
	atomic.AddInt32(&mr.fetches, 1)
	if mr.failFetch {
		return nil, errors.New("remote is unreachable")
	}
	return mr.DummyRemote.FetchReceived(ctx, identityID)
}

func (mr *mockRemote) MarkRead(ctx context.Context, senderID,
	viewerID string) error {
	if mr.beforeMarkRead != nil {
		mr.beforeMarkRead(senderID, viewerID)
	}
	return mr.DummyRemote.MarkRead(ctx, senderID, viewerID)
}

func (mr *mockRemote) fetchCount() int {
	return int(atomic.LoadInt32(&mr.fetches))
}

// mockGate returns a fixed status, or an error if err is set.
type mockGate struct {
	status FriendshipStatus
	err    error
}

func (mg *mockGate) StatusOf(context.Context, string, string) (
	FriendshipStatus, error) {
	return mg.status, mg.err
}

// failingStore wraps a MessageStore and fails Append.
type failingStore struct {
	MessageStore
}

func (fs *failingStore) Append(Message) (bool, error) {
	return false, errors.New("disk is full")
}

func newTestKV() *versioned.KV {
	return versioned.NewKV(ekv.MakeMemstore())
}

func newTestStore(t testing.TB, kv *versioned.KV, identity string) *LocalStore {
	ls, err := NewLocalStore(kv, identity)
	require.NoError(t, err)
	return ls
}

var testEpoch = time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestMessage(i int, sender, receiver string) Message {
	return Message{
		ID:         "msg" + strconv.Itoa(i),
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    "message number " + strconv.Itoa(i),
		Timestamp:  testEpoch.Add(time.Duration(i) * time.Second),
		Type:       TextType,
	}
}

func newTestBroadcast(i int) Message {
	return Message{
		ID:         "broadcast" + strconv.Itoa(i),
		SenderID:   "admin",
		ReceiverID: BroadcastReceiver,
		Content:    "maintenance tonight",
		Timestamp:  testEpoch.Add(time.Duration(i) * time.Second),
		Type:       AdminBroadcastType,
	}
}

func TestFriendshipStatus_String(t *testing.T) {
	for _, fs := range []FriendshipStatus{FriendNone, FriendPending,
		FriendAccepted} {
		parsed, err := ParseFriendshipStatus(fs.String())
		require.NoError(t, err)
		require.Equal(t, fs, parsed)
	}

	parsed, err := ParseFriendshipStatus("")
	require.NoError(t, err)
	require.Equal(t, FriendNone, parsed)

	_, err = ParseFriendshipStatus("blocked")
	require.Error(t, err)
	require.Contains(t, FriendshipStatus(9).String(), "INVALID")
}
