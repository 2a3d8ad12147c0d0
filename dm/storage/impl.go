////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/elixxir/dmsync/dm"
)

const (
	// Can be provided to SqlLite to create a temporary, in-memory DB.
	temporaryDbPath = "file:%s?mode=memory&cache=shared"

	// Determines maximum runtime (in seconds) of DB queries.
	dbTimeout = 3 * time.Second
)

// newContext builds a context for database operations.
func newContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}

// buildMessage converts a dm.Message into a row for insertion.
//
// NOTE: Id is not set inside this function because we want to use the
// autoincrement key by default.
func buildMessage(msg dm.Message) *Message {
	return &Message{
		MessageId:   msg.ID,
		SenderId:    msg.SenderID,
		ReceiverId:  msg.ReceiverID,
		Content:     msg.Content,
		TimestampMs: msg.Timestamp.UnixMilli(),
		IsRead:      msg.Read,
		Type:        uint8(msg.Type),
		ReplyToId:   msg.ReplyToID,
	}
}

// toMessage converts a row back into a dm.Message.
func toMessage(row *Message) dm.Message {
	return dm.Message{
		ID:         row.MessageId,
		SenderID:   row.SenderId,
		ReceiverID: row.ReceiverId,
		Content:    row.Content,
		Timestamp:  time.UnixMilli(row.TimestampMs),
		Read:       row.IsRead,
		Type:       dm.MessageType(row.Type),
		ReplyToID:  row.ReplyToId,
	}
}

func toMessages(rows []*Message) []dm.Message {
	msgs := make([]dm.Message, len(rows))
	for idx := range rows {
		msgs[idx] = toMessage(rows[idx])
	}
	return msgs
}

// Append inserts the message unless a row with its ID already exists.
func (i *impl) Append(msg dm.Message) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, err
	}

	i.mux.Lock()
	defer i.mux.Unlock()

	row := buildMessage(msg)
	ctx, cancel := newContext()
	result := i.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	cancel()
	if result.Error != nil {
		return false, errors.Errorf("failed to append message %s: %+v",
			msg.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		jww.TRACE.Printf("[DM SQL] Ignoring duplicate message %s", msg.ID)
		return false, nil
	}

	jww.DEBUG.Printf("[DM SQL] Successfully stored message %s as %d",
		msg.ID, row.Id)
	return true, nil
}

// Query returns the conversation between peerID and viewerID plus every
// broadcast, ordered by timestamp then ID.
func (i *impl) Query(peerID, viewerID string) ([]dm.Message, error) {
	var rows []*Message
	ctx, cancel := newContext()
	err := i.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR "+
			"(sender_id = ? AND receiver_id = ?) OR type = ?",
			peerID, viewerID, viewerID, peerID, uint8(dm.AdminBroadcastType)).
		Order("timestamp_ms, message_id").
		Find(&rows).Error
	cancel()
	if err != nil {
		return nil, errors.Errorf("failed to query conversation with %s: %+v",
			peerID, err)
	}
	return toMessages(rows), nil
}

// MarkRead sets is_read on every unread message from senderID to viewerID.
func (i *impl) MarkRead(senderID, viewerID string) (int, error) {
	i.mux.Lock()
	defer i.mux.Unlock()

	ctx, cancel := newContext()
	result := i.db.WithContext(ctx).Model(&Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?",
			senderID, viewerID, false).
		Update("is_read", true)
	cancel()
	if result.Error != nil {
		return 0, errors.Errorf("failed to mark messages from %s read: %+v",
			senderID, result.Error)
	}

	if result.RowsAffected > 0 {
		jww.DEBUG.Printf("[DM SQL] Marked %d messages from %s to %s read",
			result.RowsAffected, senderID, viewerID)
	}
	return int(result.RowsAffected), nil
}

// All returns every message.
func (i *impl) All() ([]dm.Message, error) {
	var rows []*Message
	ctx, cancel := newContext()
	err := i.db.WithContext(ctx).Order("timestamp_ms, message_id").
		Find(&rows).Error
	cancel()
	if err != nil {
		return nil, errors.Errorf("failed to list messages: %+v", err)
	}
	return toMessages(rows), nil
}

// Get returns the message with the given ID.
func (i *impl) Get(messageID string) (dm.Message, bool) {
	row := &Message{}
	ctx, cancel := newContext()
	err := i.db.WithContext(ctx).Where("message_id = ?", messageID).
		Take(row).Error
	cancel()
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			jww.ERROR.Printf("[DM SQL] Failed to get message %s: %+v",
				messageID, err)
		}
		return dm.Message{}, false
	}
	return toMessage(row), true
}

// Delete removes the message. Deleting an unknown ID is a no-op.
func (i *impl) Delete(messageID string) error {
	ctx, cancel := newContext()
	err := i.db.WithContext(ctx).Where("message_id = ?", messageID).
		Delete(&Message{}).Error
	cancel()
	if err != nil {
		return errors.Errorf("failed to delete message %s: %+v",
			messageID, err)
	}
	return nil
}
