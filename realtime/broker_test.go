////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/stoppable"
)

type collector struct {
	got []dm.Message
	mux sync.Mutex
}

func (c *collector) handle(payload []byte) {
	msg, err := dm.DecodeEnvelope(payload)
	if err != nil {
		return
	}
	c.mux.Lock()
	c.got = append(c.got, msg)
	c.mux.Unlock()
}

func (c *collector) len() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.got)
}

func testMessage(id, sender, receiver string) dm.Message {
	return dm.Message{
		ID:         id,
		SenderID:   sender,
		ReceiverID: receiver,
		Content:    "hello",
		Timestamp:  time.Unix(1654084800, 0),
		Type:       dm.TextType,
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(GetDefaultParams())

	bob, carol := &collector{}, &collector{}
	subBob, err := b.Subscribe("bob", bob.handle)
	require.NoError(t, err)
	subCarol, err := b.Subscribe("carol", carol.handle)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "bob",
		dm.NewEnvelope(testMessage("m1", "alice", "bob"))))
	require.Eventually(t, func() bool { return bob.len() == 1 },
		time.Second, time.Millisecond)
	require.Equal(t, 0, carol.len())

	// nobody listening is not an error
	require.NoError(t, b.Publish(ctx, "dave",
		dm.NewEnvelope(testMessage("m2", "alice", "dave"))))

	require.NoError(t, subBob.Close())
	require.NoError(t, stoppable.WaitForStopped(subBob, time.Second))
	require.Equal(t, 0, b.NumSubscribers(ChannelName("bob")))

	require.NoError(t, b.Publish(ctx, "bob",
		dm.NewEnvelope(testMessage("m3", "alice", "bob"))))
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, 1, bob.len())

	require.NoError(t, subCarol.Close())
	require.Error(t, subCarol.Close())
}

func TestBroker_Broadcast(t *testing.T) {
	ctx := context.Background()
	b := NewBroker(GetDefaultParams())

	collectors := []*collector{{}, {}, {}}
	for _, c := range collectors {
		sub, err := b.SubscribeBroadcasts(c.handle)
		require.NoError(t, err)
		defer sub.Close()
	}

	broadcast := dm.Message{
		ID:         "b1",
		SenderID:   "admin",
		ReceiverID: dm.BroadcastReceiver,
		Content:    "maintenance",
		Timestamp:  time.Unix(1654084800, 0),
		Type:       dm.AdminBroadcastType,
	}
	require.NoError(t, b.PublishBroadcast(ctx, dm.NewEnvelope(broadcast)))

	for _, c := range collectors {
		require.Eventually(t, func() bool { return c.len() == 1 },
			time.Second, time.Millisecond)
	}
}

// A subscriber that stops draining its queue loses payloads instead of
// blocking the publisher.
func TestBroker_SlowSubscriber(t *testing.T) {
	ctx := context.Background()
	params := GetDefaultParams()
	params.BufferSize = 1
	b := NewBroker(params)

	release := make(chan struct{})
	var handled int
	var mux sync.Mutex
	sub, err := b.Subscribe("bob", func([]byte) {
		<-release
		mux.Lock()
		handled++
		mux.Unlock()
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(ctx, "bob",
				dm.NewEnvelope(testMessage("m", "alice", "bob")))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	close(release)
	require.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return handled >= 1
	}, time.Second, time.Millisecond)
	mux.Lock()
	require.Less(t, handled, 10)
	mux.Unlock()

	require.NoError(t, sub.Close())
}

func TestBroker_Subscribe_EmptyIdentity(t *testing.T) {
	b := NewBroker(GetDefaultParams())
	_, err := b.Subscribe("", func([]byte) {})
	require.Error(t, err)
}

func TestBroker_Publish_Canceled(t *testing.T) {
	b := NewBroker(GetDefaultParams())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, b.Publish(ctx, "bob",
		dm.NewEnvelope(testMessage("m1", "alice", "bob"))))
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "dm:alice", ChannelName("alice"))
	require.Equal(t, "dm:admin-broadcasts", BroadcastChannelName())
}

func TestGetParameters(t *testing.T) {
	p, err := GetParameters("")
	require.NoError(t, err)
	require.Equal(t, GetDefaultParams(), p)

	p, err = GetParameters(`{"PublishRate":5,"BufferSize":2}`)
	require.NoError(t, err)
	require.Equal(t, Params{PublishRate: 5, BufferSize: 2}, p)

	_, err = GetParameters("{")
	require.Error(t, err)
}
