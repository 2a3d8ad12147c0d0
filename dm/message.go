////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// BroadcastReceiver is the receiver ID of administrative broadcasts. A
// message addressed to it belongs to every conversation.
const BroadcastReceiver = "*"

// Message is a single direct message or administrative broadcast. It is
// immutable once created except for Read, which only ever goes from false to
// true.
type Message struct {
	// ID is generated by the sender and is unique across every store.
	ID string

	SenderID   string
	ReceiverID string
	Content    string

	// Timestamp is the sender's local send time. Ordering between senders
	// with skewed clocks is best effort.
	Timestamp time.Time

	Read bool
	Type MessageType

	// ReplyToID references another message. It may dangle if the referenced
	// message was deleted or never seen.
	ReplyToID string
}

// NewMessageID generates a new random message ID.
func NewMessageID() string {
	return uuid.NewString()
}

// IsBroadcast returns true for administrative broadcasts.
func (m Message) IsBroadcast() bool {
	return m.Type == AdminBroadcastType || m.ReceiverID == BroadcastReceiver
}

// InConversation returns true if the message belongs to the conversation
// between a and b. Broadcasts belong to every conversation.
func (m Message) InConversation(a, b string) bool {
	if m.IsBroadcast() {
		return true
	}
	return (m.SenderID == a && m.ReceiverID == b) ||
		(m.SenderID == b && m.ReceiverID == a)
}

// IsReply returns true if the message references another message.
func (m Message) IsReply() bool {
	return m.ReplyToID != ""
}

// SortMessages sorts messages by timestamp ascending. Equal timestamps are
// ordered by ID so every device renders the same order.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return messageLess(msgs[i], msgs[j])
	})
}

func messageLess(a, b Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// mergeHistory returns the union of two message lists, deduplicated by ID
// and sorted. Entries in b win over entries in a so fresher read flags are
// kept.
func mergeHistory(a, b []Message) []Message {
	byID := make(map[string]Message, len(a)+len(b))
	for _, m := range a {
		byID[m.ID] = m
	}
	for _, m := range b {
		byID[m.ID] = m
	}

	merged := make([]Message, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	SortMessages(merged)
	return merged
}
