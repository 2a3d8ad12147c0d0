////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/metrics"
	"gitlab.com/elixxir/dmsync/stoppable"
)

// Broker is an in-process dm.Channel. Every subscriber gets a buffered queue
// drained by its own goroutine; when the queue is full new payloads for that
// subscriber are dropped.
type Broker struct {
	params  Params
	limiter ratelimit.Limiter

	subscribers map[string]map[uint64]*subscriber
	nextID      uint64
	mux         sync.RWMutex
}

type subscriber struct {
	id      uint64
	channel string
	queue   chan []byte
	handler dm.PayloadHandler
	stop    *stoppable.Single
}

// NewBroker returns an empty Broker.
func NewBroker(params Params) *Broker {
	return &Broker{
		params:      params,
		limiter:     newLimiter(params.PublishRate),
		subscribers: make(map[string]map[uint64]*subscriber),
	}
}

// Publish delivers the envelope to every subscriber of the recipient's
// channel. It succeeds even if nobody is subscribed.
func (b *Broker) Publish(ctx context.Context, recipientID string,
	e dm.Envelope) error {
	return b.publish(ctx, ChannelName(recipientID), e)
}

// PublishBroadcast delivers the envelope to every broadcast subscriber.
func (b *Broker) PublishBroadcast(ctx context.Context, e dm.Envelope) error {
	return b.publish(ctx, BroadcastChannelName(), e)
}

// Subscribe delivers payloads published to identityID until the returned
// Stoppable is closed.
func (b *Broker) Subscribe(identityID string, handler dm.PayloadHandler) (
	stoppable.Stoppable, error) {
	if identityID == "" {
		return nil, errors.New("cannot subscribe an empty identity")
	}
	return b.subscribe(ChannelName(identityID), handler), nil
}

// SubscribeBroadcasts delivers administrative broadcasts until the returned
// Stoppable is closed.
func (b *Broker) SubscribeBroadcasts(handler dm.PayloadHandler) (
	stoppable.Stoppable, error) {
	return b.subscribe(BroadcastChannelName(), handler), nil
}

// NumSubscribers returns how many subscribers channel has.
func (b *Broker) NumSubscribers(channel string) int {
	b.mux.RLock()
	defer b.mux.RUnlock()
	return len(b.subscribers[channel])
}

func (b *Broker) publish(ctx context.Context, channel string,
	e dm.Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return errors.Wrapf(err, "failed to encode envelope for %s", channel)
	}

	if err = ctx.Err(); err != nil {
		return err
	}
	b.limiter.Take()

	b.mux.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers[channel]))
	for _, sub := range b.subscribers[channel] {
		subs = append(subs, sub)
	}
	b.mux.RUnlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub.queue <- payload:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		jww.WARN.Printf("[Realtime] Dropped %d payloads on %s (slow "+
			"subscribers)", dropped, channel)
		metrics.RealtimeDropped.Add(float64(dropped))
	}

	jww.TRACE.Printf("[Realtime] Published %s to %d subscribers on %s",
		e.Message.ID, len(subs)-dropped, channel)
	return nil
}

func (b *Broker) subscribe(channel string,
	handler dm.PayloadHandler) stoppable.Stoppable {
	b.mux.Lock()
	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		channel: channel,
		queue:   make(chan []byte, b.params.BufferSize),
		handler: handler,
		stop: stoppable.NewSingle(
			"Broker-" + channel + "-" + strconv.FormatUint(b.nextID, 10)),
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[uint64]*subscriber)
	}
	b.subscribers[channel][sub.id] = sub
	b.mux.Unlock()

	go b.deliver(sub)

	jww.DEBUG.Printf("[Realtime] Subscribed to %s", channel)
	return sub.stop
}

// deliver runs the subscriber's handler on every queued payload until the
// subscription is stopped.
func (b *Broker) deliver(sub *subscriber) {
	for {
		select {
		case <-sub.stop.Quit():
			b.unsubscribe(sub)
			sub.stop.ToStopped()
			return
		case payload := <-sub.queue:
			sub.handler(payload)
		}
	}
}

func (b *Broker) unsubscribe(sub *subscriber) {
	b.mux.Lock()
	defer b.mux.Unlock()

	// Don't close the queue here: publishers may have already snapshotted
	// subscribers and will send concurrently.
	delete(b.subscribers[sub.channel], sub.id)
	if len(b.subscribers[sub.channel]) == 0 {
		delete(b.subscribers, sub.channel)
	}
	jww.DEBUG.Printf("[Realtime] Unsubscribed from %s", sub.channel)
}

func newLimiter(rate int) ratelimit.Limiter {
	if rate <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(rate)
}
