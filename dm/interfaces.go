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

	"github.com/pkg/errors"

	"gitlab.com/elixxir/dmsync/stoppable"
)

// MessageStore is the on-device store holding every message this device has
// seen. Implementations must make the check-then-insert in Append atomic and
// must persist a new message durably before Append returns.
type MessageStore interface {
	// Append inserts the message if its ID is not already stored. It returns
	// true if the message was new. Appending a known ID is a no-op, not an
	// error.
	Append(msg Message) (bool, error)

	// Query returns every message between peerID and viewerID in either
	// direction plus every administrative broadcast, sorted by timestamp
	// with ID as the tie-break.
	Query(peerID, viewerID string) ([]Message, error)

	// MarkRead sets Read on every unread message from senderID addressed to
	// viewerID and returns how many were changed. It is idempotent.
	MarkRead(senderID, viewerID string) (int, error)

	// All returns every stored message, sorted.
	All() ([]Message, error)

	// Get returns the message with the given ID, if stored.
	Get(messageID string) (Message, bool)

	// Delete removes the message. Pin, star and reply references to it are
	// left dangling.
	Delete(messageID string) error
}

// RemoteStore is the hosted authoritative message history.
type RemoteStore interface {
	// FetchReceived returns every message where identityID is the receiver.
	FetchReceived(ctx context.Context, identityID string) ([]Message, error)

	// FetchSent returns every message where identityID is the sender.
	FetchSent(ctx context.Context, identityID string) ([]Message, error)

	// FetchBroadcasts returns every administrative broadcast.
	FetchBroadcasts(ctx context.Context) ([]Message, error)

	// MarkRead mirrors a local mark-read to the remote read flag.
	MarkRead(ctx context.Context, senderID, viewerID string) error

	// StoreMessage persists a sent message so offline receivers recover it
	// on their next reconciliation. Storing a known ID is a no-op.
	StoreMessage(ctx context.Context, msg Message) error
}

// FriendshipStatus is the state of the friendship between two users.
type FriendshipStatus uint8

const (
	FriendNone FriendshipStatus = iota
	FriendPending
	FriendAccepted
)

// String returns the wire form of the status.
func (fs FriendshipStatus) String() string {
	switch fs {
	case FriendNone:
		return "none"
	case FriendPending:
		return "pending"
	case FriendAccepted:
		return "accepted"
	default:
		return "INVALID FRIENDSHIP STATUS: " + strconv.Itoa(int(fs))
	}
}

// ParseFriendshipStatus parses the wire form of a FriendshipStatus.
func ParseFriendshipStatus(s string) (FriendshipStatus, error) {
	switch s {
	case "none", "":
		return FriendNone, nil
	case "pending":
		return FriendPending, nil
	case "accepted":
		return FriendAccepted, nil
	default:
		return FriendNone, errors.Errorf("unknown friendship status %q", s)
	}
}

// FriendGate reports the friendship status between a viewer and a peer. The
// approval workflow lives outside this package; only its result is read.
type FriendGate interface {
	StatusOf(ctx context.Context, viewerID, peerID string) (
		FriendshipStatus, error)
}

// PayloadHandler is called with every raw payload delivered on a realtime
// subscription.
type PayloadHandler func(payload []byte)

// Channel is the realtime delivery transport. Every identity owns one
// logical channel keyed by its own ID; senders publish onto the recipient's
// channel.
type Channel interface {
	// Publish sends the envelope to the recipient's channel. Delivery is best
	// effort; a recipient that is not subscribed misses the event.
	Publish(ctx context.Context, recipientID string, e Envelope) error

	// PublishBroadcast sends an administrative broadcast to every
	// broadcast subscriber.
	PublishBroadcast(ctx context.Context, e Envelope) error

	// Subscribe starts delivering payloads published to identityID's
	// channel. Closing the returned Stoppable unsubscribes.
	Subscribe(identityID string, handler PayloadHandler) (
		stoppable.Stoppable, error)

	// SubscribeBroadcasts starts delivering administrative broadcasts.
	SubscribeBroadcasts(handler PayloadHandler) (stoppable.Stoppable, error)
}

// MessageReceivedCallback is called after a realtime message has been
// stored. isNew is false when the message was a duplicate.
type MessageReceivedCallback func(msg Message, isNew bool)
