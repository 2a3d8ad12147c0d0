////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"github.com/pkg/errors"
)

const (
	pinnedMessageKeyPrefix = "pinnedMessage:"
	pinnedChatsKeyPrefix   = "pinnedChats:"
)

// SetPinned pins messageID in the conversation between viewerID and peerID.
// There is at most one pinned message per conversation; the last write wins.
func (md *Metadata) SetPinned(viewerID, peerID, messageID string) error {
	if messageID == "" {
		return errors.New("cannot pin an empty message ID")
	}

	md.mux.Lock()
	defer md.mux.Unlock()
	return md.saveJSON(pinnedMessageKey(viewerID, peerID), messageID)
}

// GetPinned returns the pinned message ID for the conversation, if any. The
// message itself may no longer exist.
func (md *Metadata) GetPinned(viewerID, peerID string) (string, bool, error) {
	md.mux.Lock()
	defer md.mux.Unlock()

	var messageID string
	found, err := md.loadJSON(pinnedMessageKey(viewerID, peerID), &messageID)
	if err != nil || !found {
		return "", false, err
	}
	return messageID, true, nil
}

// ClearPinned removes the pin for the conversation.
func (md *Metadata) ClearPinned(viewerID, peerID string) error {
	md.mux.Lock()
	defer md.mux.Unlock()

	err := md.kv.Delete(pinnedMessageKey(viewerID, peerID), metadataVersion)
	if err != nil && md.kv.Exists(err) {
		return err
	}
	return nil
}

// PinChat pins or unpins the conversation with peerID in viewerID's inbox.
func (md *Metadata) PinChat(viewerID, peerID string, pinned bool) error {
	md.mux.Lock()
	defer md.mux.Unlock()

	chats, err := md.loadPinnedChats(viewerID)
	if err != nil {
		return err
	}

	if pinned {
		chats[peerID] = true
	} else {
		delete(chats, peerID)
	}
	return md.saveJSON(pinnedChatsKeyPrefix+viewerID, chats)
}

// PinnedChats returns the set of peers pinned in viewerID's inbox.
func (md *Metadata) PinnedChats(viewerID string) (map[string]bool, error) {
	md.mux.Lock()
	defer md.mux.Unlock()
	return md.loadPinnedChats(viewerID)
}

func (md *Metadata) loadPinnedChats(viewerID string) (map[string]bool, error) {
	chats := make(map[string]bool)
	if _, err := md.loadJSON(pinnedChatsKeyPrefix+viewerID, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func pinnedMessageKey(viewerID, peerID string) string {
	return pinnedMessageKeyPrefix + viewerID + ":" + peerID
}
