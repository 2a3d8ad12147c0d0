////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import "github.com/pkg/errors"

var (
	// ErrNotFriends is returned when a send is attempted to a peer whose
	// friendship status is not accepted. It is a policy rejection; nothing
	// is written to the store.
	ErrNotFriends = errors.New(
		"sending is not permitted until the friendship is accepted")

	// ErrEmptyMessage is returned when the message content is empty.
	ErrEmptyMessage = errors.New("message content cannot be empty")

	// ErrInvalidPeer is returned when the peer ID is empty, the caller's own
	// ID, or the broadcast receiver.
	ErrInvalidPeer = errors.New("invalid conversation partner")

	// ErrMalformedPayload is returned by DecodeEnvelope for payloads that do
	// not decode into a valid Message.
	ErrMalformedPayload = errors.New("malformed realtime payload")

	// ErrInvalidReaction is returned if the reaction is not a single emoji.
	ErrInvalidReaction = errors.New(
		"the reaction is not valid, it must be a single emoji")
)
