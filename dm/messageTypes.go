////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"strconv"

	"github.com/pkg/errors"
)

// MessageType distinguishes ordinary peer messages from administrative
// broadcasts.
type MessageType uint8

const (
	// TextType is the default type for a message sent from one peer to
	// another.
	TextType MessageType = 1

	// AdminBroadcastType denotes an administrative message addressed to
	// BroadcastReceiver. It is visible in every conversation.
	AdminBroadcastType MessageType = 2
)

// Wire tags of each MessageType.
const (
	textTag           = "text"
	adminBroadcastTag = "admin-broadcast"
)

// String returns the wire tag of the [MessageType]. This function adheres to
// the [fmt.Stringer] interface.
func (mt MessageType) String() string {
	switch mt {
	case TextType:
		return textTag
	case AdminBroadcastType:
		return adminBroadcastTag
	default:
		return "Unknown messageType " + strconv.Itoa(int(mt))
	}
}

// ParseMessageType returns the MessageType for a wire tag.
func ParseMessageType(tag string) (MessageType, error) {
	switch tag {
	case textTag:
		return TextType, nil
	case adminBroadcastTag:
		return AdminBroadcastType, nil
	default:
		return 0, errors.Errorf("unknown message type %q", tag)
	}
}
