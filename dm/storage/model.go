////////////////////////////////////////////////////////////////////////////////
// Copyright © 2023 Privategrity Corporation                                   /
//                                                                             /
// All rights reserved.                                                        /
////////////////////////////////////////////////////////////////////////////////

package storage

// Message defines the SQL representation of a single dm.Message.
//
// MessageId is the client generated ID and is unique; Id only orders rows by
// insertion.
type Message struct {
	Id          int64  `gorm:"primaryKey;autoIncrement:true"`
	MessageId   string `gorm:"uniqueIndex;not null"`
	SenderId    string `gorm:"index;not null"`
	ReceiverId  string `gorm:"index;not null"`
	Content     string `gorm:"not null"`
	TimestampMs int64  `gorm:"index;not null"`
	IsRead      bool   `gorm:"column:is_read;not null"`
	Type        uint8  `gorm:"not null"`
	ReplyToId   string
}

// TableName overrides the table name used by Message.
func (Message) TableName() string {
	return "dm_messages"
}
