////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/ratelimit"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/stoppable"
)

// RedisChannel is a dm.Channel over Redis pub/sub. Redis does not queue
// messages for absent subscribers, so a publish to an identity that is not
// subscribed is lost.
type RedisChannel struct {
	client  *redis.Client
	limiter ratelimit.Limiter
}

// NewRedisChannel connects to the Redis server at redisURL.
func NewRedisChannel(ctx context.Context, redisURL string, params Params) (
	*RedisChannel, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis URL")
	}

	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to reach redis at %s", opts.Addr)
	}

	jww.INFO.Printf("[Realtime] Connected to redis at %s", opts.Addr)
	return NewRedisChannelFromClient(client, params), nil
}

// NewRedisChannelFromClient wraps an existing client.
func NewRedisChannelFromClient(client *redis.Client,
	params Params) *RedisChannel {
	return &RedisChannel{
		client:  client,
		limiter: newLimiter(params.PublishRate),
	}
}

// Close closes the Redis connection.
func (rc *RedisChannel) Close() error {
	return rc.client.Close()
}

// Publish sends the envelope on the recipient's channel.
func (rc *RedisChannel) Publish(ctx context.Context, recipientID string,
	e dm.Envelope) error {
	return rc.publish(ctx, ChannelName(recipientID), e)
}

// PublishBroadcast sends the envelope on the broadcast channel.
func (rc *RedisChannel) PublishBroadcast(ctx context.Context,
	e dm.Envelope) error {
	return rc.publish(ctx, BroadcastChannelName(), e)
}

// Subscribe delivers payloads published to identityID until the returned
// Stoppable is closed.
func (rc *RedisChannel) Subscribe(identityID string,
	handler dm.PayloadHandler) (stoppable.Stoppable, error) {
	if identityID == "" {
		return nil, errors.New("cannot subscribe an empty identity")
	}
	return rc.subscribe(ChannelName(identityID), handler)
}

// SubscribeBroadcasts delivers administrative broadcasts until the returned
// Stoppable is closed.
func (rc *RedisChannel) SubscribeBroadcasts(handler dm.PayloadHandler) (
	stoppable.Stoppable, error) {
	return rc.subscribe(BroadcastChannelName(), handler)
}

func (rc *RedisChannel) publish(ctx context.Context, channel string,
	e dm.Envelope) error {
	payload, err := e.Encode()
	if err != nil {
		return errors.Wrapf(err, "failed to encode envelope for %s", channel)
	}

	rc.limiter.Take()
	receivers, err := rc.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to publish to %s", channel)
	}

	jww.TRACE.Printf("[Realtime] Published %s to %d receivers on %s",
		e.Message.ID, receivers, channel)
	return nil
}

func (rc *RedisChannel) subscribe(channel string,
	handler dm.PayloadHandler) (stoppable.Stoppable, error) {
	ctx := context.Background()
	pubsub := rc.client.Subscribe(ctx, channel)

	// wait for the subscription to be confirmed so nothing published after
	// this returns is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, errors.Wrapf(err, "failed to subscribe to %s", channel)
	}

	stop := stoppable.NewSingle("Redis-" + channel)
	go func() {
		defer stop.ToStopped()
		msgs := pubsub.Channel()
		for {
			select {
			case <-stop.Quit():
				if err := pubsub.Close(); err != nil {
					jww.WARN.Printf("[Realtime] Failed to close "+
						"subscription to %s: %+v", channel, err)
				}
				jww.DEBUG.Printf("[Realtime] Unsubscribed from %s", channel)
				return
			case msg, ok := <-msgs:
				if !ok {
					jww.WARN.Printf("[Realtime] Subscription to %s closed "+
						"by the server", channel)
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	jww.DEBUG.Printf("[Realtime] Subscribed to %s", channel)
	return stop, nil
}
