////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"sync"

	jww "github.com/spf13/jwalterweatherman"
)

// DummyRemote is an in-memory RemoteStore and FriendGate. Every process has
// its own copy, so it only lets a single device talk to itself.
//
// THIS IS FOR DEVELOPMENT AND DEBUGGING PURPOSES ONLY.
type DummyRemote struct {
	messages    map[string]Message
	order       []string
	friendships map[[2]string]FriendshipStatus
	mux         sync.RWMutex
}

// NewDummyRemote returns an empty DummyRemote.
func NewDummyRemote() *DummyRemote {
	jww.WARN.Printf("[DM] Creating a dummy remote store. This is for " +
		"development and debugging only. Nothing is persisted. YOU SHOULD " +
		"NEVER SEE THIS MESSAGE IN PRODUCTION")
	return &DummyRemote{
		messages:    make(map[string]Message),
		friendships: make(map[[2]string]FriendshipStatus),
	}
}

// SetFriendship records the status between a and b in both directions.
func (dr *DummyRemote) SetFriendship(a, b string, status FriendshipStatus) {
	dr.mux.Lock()
	defer dr.mux.Unlock()
	dr.friendships[[2]string{a, b}] = status
	dr.friendships[[2]string{b, a}] = status
}

// StatusOf returns the recorded status, or FriendNone.
func (dr *DummyRemote) StatusOf(_ context.Context, viewerID, peerID string) (
	FriendshipStatus, error) {
	dr.mux.RLock()
	defer dr.mux.RUnlock()
	return dr.friendships[[2]string{viewerID, peerID}], nil
}

// FetchReceived returns every message addressed to identityID.
func (dr *DummyRemote) FetchReceived(_ context.Context, identityID string) (
	[]Message, error) {
	return dr.filter(func(m Message) bool {
		return !m.IsBroadcast() && m.ReceiverID == identityID
	}), nil
}

// FetchSent returns every message sent by identityID.
func (dr *DummyRemote) FetchSent(_ context.Context, identityID string) (
	[]Message, error) {
	return dr.filter(func(m Message) bool {
		return !m.IsBroadcast() && m.SenderID == identityID
	}), nil
}

// FetchBroadcasts returns every administrative broadcast.
func (dr *DummyRemote) FetchBroadcasts(context.Context) ([]Message, error) {
	return dr.filter(Message.IsBroadcast), nil
}

// MarkRead sets the remote read flag on messages from senderID to viewerID.
func (dr *DummyRemote) MarkRead(_ context.Context, senderID, viewerID string) error {
	dr.mux.Lock()
	defer dr.mux.Unlock()
	for id, m := range dr.messages {
		if m.SenderID == senderID && m.ReceiverID == viewerID && !m.Read {
			m.Read = true
			dr.messages[id] = m
		}
	}
	return nil
}

// StoreMessage stores the message if its ID is new.
func (dr *DummyRemote) StoreMessage(_ context.Context, msg Message) error {
	dr.mux.Lock()
	defer dr.mux.Unlock()
	if _, exists := dr.messages[msg.ID]; exists {
		return nil
	}
	dr.messages[msg.ID] = msg
	dr.order = append(dr.order, msg.ID)
	return nil
}

func (dr *DummyRemote) filter(keep func(Message) bool) []Message {
	dr.mux.RLock()
	defer dr.mux.RUnlock()

	result := make([]Message, 0)
	for _, id := range dr.order {
		if m := dr.messages[id]; keep(m) {
			result = append(result, m)
		}
	}
	return result
}
