////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/dmsync/metrics"
)

// CanSend reports whether the identity may send to peerID. A gate error is
// treated as no friendship.
func (c *Controller) CanSend(ctx context.Context, peerID string) bool {
	status, err := c.gate.StatusOf(ctx, c.identity, peerID)
	if err != nil {
		jww.WARN.Printf("[DM] Failed to look up friendship with %s, "+
			"treating as %s: %+v", peerID, FriendNone, err)
		return false
	}
	return status == FriendAccepted
}

// Send sends a text message to peerID.
func (c *Controller) Send(ctx context.Context, peerID, text string) (
	Message, error) {
	return c.Reply(ctx, peerID, text, "")
}

// Reply sends a text message to peerID in reply to replyToID. An empty
// replyToID sends a plain message. The reply target is not checked; it may
// have been deleted.
//
// The message is in the local store when Reply returns. Storing it remotely
// and publishing it are best effort and only logged on failure.
func (c *Controller) Reply(ctx context.Context, peerID, text,
	replyToID string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		metrics.Sends.WithLabelValues(metrics.SendRejected).Inc()
		return Message{}, ErrEmptyMessage
	}
	if peerID == "" || peerID == BroadcastReceiver || peerID == c.identity {
		metrics.Sends.WithLabelValues(metrics.SendRejected).Inc()
		return Message{}, errors.WithMessagef(ErrInvalidPeer,
			"cannot send to %q", peerID)
	}

	status, err := c.gate.StatusOf(ctx, c.identity, peerID)
	if err != nil {
		jww.WARN.Printf("[DM] Failed to look up friendship with %s: %+v",
			peerID, err)
		status = FriendNone
	}
	if status != FriendAccepted {
		metrics.Sends.WithLabelValues(metrics.SendRejected).Inc()
		return Message{}, errors.WithMessagef(ErrNotFriends,
			"friendship with %s is %s", peerID, status)
	}

	msg := Message{
		ID:         NewMessageID(),
		SenderID:   c.identity,
		ReceiverID: peerID,
		Content:    text,
		Timestamp:  sendTime(),
		Type:       TextType,
		ReplyToID:  replyToID,
	}

	if _, err = c.store.Append(msg); err != nil {
		metrics.Sends.WithLabelValues(metrics.SendFailed).Inc()
		return Message{}, errors.WithMessagef(err,
			"failed to store message to %s", peerID)
	}
	metrics.MessagesAppended.WithLabelValues(metrics.SourceSend).Inc()

	c.deliver(ctx, msg)

	metrics.Sends.WithLabelValues(metrics.SendOK).Inc()
	jww.DEBUG.Printf("[DM] Sent message %s to %s", msg.ID, peerID)
	return msg, nil
}

// deliver stores msg at the remote and publishes it on the realtime channel.
// Both are best effort.
func (c *Controller) deliver(ctx context.Context, msg Message) {
	if c.remote != nil {
		if err := c.remote.StoreMessage(ctx, msg); err != nil {
			jww.WARN.Printf("[DM] Failed to store message %s remotely, "+
				"offline delivery will not be possible: %+v", msg.ID, err)
		}
	}

	if c.channel == nil {
		return
	}
	if err := c.channel.Publish(ctx, msg.ReceiverID, NewEnvelope(msg)); err != nil {
		jww.WARN.Printf("[DM] Failed to publish message %s to %s: %+v",
			msg.ID, msg.ReceiverID, err)
	}
}

// SendBroadcast stores an administrative broadcast at the remote and
// publishes it to every broadcast subscriber. Unlike peer messages, the
// remote write must succeed.
func SendBroadcast(ctx context.Context, senderID, text string,
	remote RemoteStore, channel Channel) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyMessage
	}

	msg := Message{
		ID:         NewMessageID(),
		SenderID:   senderID,
		ReceiverID: BroadcastReceiver,
		Content:    text,
		Timestamp:  sendTime(),
		Type:       AdminBroadcastType,
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}

	if err := remote.StoreMessage(ctx, msg); err != nil {
		return Message{}, errors.WithMessage(err,
			"failed to store broadcast")
	}

	if channel != nil {
		if err := channel.PublishBroadcast(ctx, NewEnvelope(msg)); err != nil {
			jww.WARN.Printf("[DM] Failed to publish broadcast %s: %+v",
				msg.ID, err)
		}
	}
	return msg, nil
}

// sendTime is the timestamp for a new message at the precision it is stored
// with, so ordering does not change when the message is reloaded.
func sendTime() time.Time {
	return netTime.Now().Truncate(time.Millisecond)
}
