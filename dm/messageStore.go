////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/dmsync/storage/versioned"
)

// Storage keys.
const (
	messageStorePrefix = "dmMessageStore"

	messageIndexKey     = "messageIndex"
	messageIndexVersion = 0

	messageKeyPrefix = "message:"
	messageVersion   = 0
)

// LocalStore is the ekv backed MessageStore. Every message is written to its
// own key and the list of known IDs to an index key; both writes complete
// before Append returns so a sent message survives a restart even if it
// never reached the network.
type LocalStore struct {
	kv *versioned.KV

	// messages holds every stored message by ID; order is the ID index in
	// insertion order as persisted.
	messages map[string]Message
	order    []string

	mux sync.RWMutex
}

// NewLocalStore loads the message store for identityID from the KV, or
// starts an empty one if nothing was stored yet.
func NewLocalStore(kv *versioned.KV, identityID string) (*LocalStore, error) {
	storeKV, err := kv.Prefix(messageStorePrefix)
	if err != nil {
		return nil, err
	}
	storeKV, err = storeKV.Prefix(identityID)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"invalid identity %q for message store", identityID)
	}

	ls := &LocalStore{
		kv:       storeKV,
		messages: make(map[string]Message),
	}

	if err = ls.load(); err != nil {
		return nil, err
	}

	jww.INFO.Printf("[DM Store] Loaded %d messages for %s",
		len(ls.order), identityID)
	return ls, nil
}

// Append inserts the message if its ID is new. See MessageStore.Append.
func (ls *LocalStore) Append(msg Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}

	ls.mux.Lock()
	defer ls.mux.Unlock()

	if _, exists := ls.messages[msg.ID]; exists {
		jww.TRACE.Printf("[DM Store] Ignoring duplicate message %s", msg.ID)
		return false, nil
	}

	if err := ls.saveMessage(msg); err != nil {
		return false, err
	}

	ls.order = append(ls.order, msg.ID)
	if err := ls.saveIndex(); err != nil {
		ls.order = ls.order[:len(ls.order)-1]
		if delErr := ls.deleteMessage(msg.ID); delErr != nil {
			jww.ERROR.Printf("[DM Store] Failed to roll back message %s: "+
				"%+v", msg.ID, delErr)
		}
		return false, err
	}

	ls.messages[msg.ID] = msg
	jww.DEBUG.Printf("[DM Store] Stored message %s from %s to %s",
		msg.ID, msg.SenderID, msg.ReceiverID)
	return true, nil
}

// Query returns the conversation between peerID and viewerID plus
// broadcasts. See MessageStore.Query.
func (ls *LocalStore) Query(peerID, viewerID string) ([]Message, error) {
	ls.mux.RLock()
	defer ls.mux.RUnlock()

	result := make([]Message, 0)
	for _, id := range ls.order {
		if msg := ls.messages[id]; msg.InConversation(peerID, viewerID) {
			result = append(result, msg)
		}
	}
	SortMessages(result)
	return result, nil
}

// MarkRead sets Read on unread messages from senderID to viewerID. See
// MessageStore.MarkRead.
func (ls *LocalStore) MarkRead(senderID, viewerID string) (int, error) {
	ls.mux.Lock()
	defer ls.mux.Unlock()

	changed := 0
	for _, id := range ls.order {
		msg := ls.messages[id]
		if msg.Read || msg.SenderID != senderID || msg.ReceiverID != viewerID {
			continue
		}

		msg.Read = true
		if err := ls.saveMessage(msg); err != nil {
			return changed, errors.WithMessagef(err,
				"failed to mark message %s read", id)
		}
		ls.messages[id] = msg
		changed++
	}

	if changed > 0 {
		jww.DEBUG.Printf("[DM Store] Marked %d messages from %s to %s read",
			changed, senderID, viewerID)
	}
	return changed, nil
}

// All returns every stored message, sorted.
func (ls *LocalStore) All() ([]Message, error) {
	ls.mux.RLock()
	defer ls.mux.RUnlock()

	result := make([]Message, 0, len(ls.order))
	for _, id := range ls.order {
		result = append(result, ls.messages[id])
	}
	SortMessages(result)
	return result, nil
}

// Get returns the message with the given ID.
func (ls *LocalStore) Get(messageID string) (Message, bool) {
	ls.mux.RLock()
	defer ls.mux.RUnlock()
	msg, exists := ls.messages[messageID]
	return msg, exists
}

// Delete removes the message. Deleting an unknown ID is a no-op.
func (ls *LocalStore) Delete(messageID string) error {
	ls.mux.Lock()
	defer ls.mux.Unlock()

	if _, exists := ls.messages[messageID]; !exists {
		return nil
	}

	newOrder := make([]string, 0, len(ls.order))
	for _, id := range ls.order {
		if id != messageID {
			newOrder = append(newOrder, id)
		}
	}

	oldOrder := ls.order
	ls.order = newOrder
	if err := ls.saveIndex(); err != nil {
		ls.order = oldOrder
		return err
	}

	delete(ls.messages, messageID)
	if err := ls.deleteMessage(messageID); err != nil {
		// The index no longer references it, so the orphan is unreachable
		jww.WARN.Printf("[DM Store] Failed to delete message %s: %+v",
			messageID, err)
	}
	return nil
}

////////////////////////////////////////////////////////////////////////////////
// Storage Functions                                                          //
////////////////////////////////////////////////////////////////////////////////

// load restores the index and every message it references. A message listed
// in the index but missing from storage is skipped with a warning.
func (ls *LocalStore) load() error {
	obj, err := ls.kv.Get(messageIndexKey, messageIndexVersion)
	if err != nil {
		if !ls.kv.Exists(err) {
			return nil
		}
		return errors.WithMessage(err, "failed to load message index")
	}

	var ids []string
	if err = json.Unmarshal(obj.Data, &ids); err != nil {
		return errors.Wrap(err, "failed to unmarshal message index")
	}

	for _, id := range ids {
		msgObj, err := ls.kv.Get(messageKeyPrefix+id, messageVersion)
		if err != nil {
			jww.WARN.Printf("[DM Store] Message %s in index could not be "+
				"loaded: %+v", id, err)
			continue
		}

		var msg Message
		if err = json.Unmarshal(msgObj.Data, &msg); err != nil {
			jww.WARN.Printf("[DM Store] Message %s could not be decoded: "+
				"%+v", id, err)
			continue
		}

		if _, exists := ls.messages[id]; exists {
			continue
		}
		ls.messages[id] = msg
		ls.order = append(ls.order, id)
	}

	return nil
}

func (ls *LocalStore) saveIndex() error {
	data, err := json.Marshal(ls.order)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message index")
	}
	return ls.kv.Set(messageIndexKey,
		versioned.NewObject(messageIndexVersion, data))
}

func (ls *LocalStore) saveMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal message %s", msg.ID)
	}
	return ls.kv.Set(messageKeyPrefix+msg.ID,
		versioned.NewObject(messageVersion, data))
}

func (ls *LocalStore) deleteMessage(messageID string) error {
	return ls.kv.Delete(messageKeyPrefix+messageID, messageVersion)
}
