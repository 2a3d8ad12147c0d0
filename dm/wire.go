////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// wireMessage is the canonical JSON shape shared by realtime payloads,
// reconciliation rows and the local store.
type wireMessage struct {
	ID         string `json:"id"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"` // epoch millis
	Read       bool   `json:"read"`
	Type       string `json:"type"`
	ReplyToID  string `json:"replyToId,omitempty"`
}

// MarshalJSON encodes the Message in its wire shape.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		Timestamp:  m.Timestamp.UnixMilli(),
		Read:       m.Read,
		Type:       m.Type.String(),
		ReplyToID:  m.ReplyToID,
	})
}

// UnmarshalJSON decodes the wire shape into the Message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}

	mt, err := ParseMessageType(wm.Type)
	if err != nil {
		return err
	}

	*m = Message{
		ID:         wm.ID,
		SenderID:   wm.SenderID,
		ReceiverID: wm.ReceiverID,
		Content:    wm.Content,
		Timestamp:  time.UnixMilli(wm.Timestamp),
		Read:       wm.Read,
		Type:       mt,
		ReplyToID:  wm.ReplyToID,
	}
	return nil
}

// Validate checks the invariants every stored message must satisfy.
func (m Message) Validate() error {
	switch {
	case m.ID == "":
		return errors.New("message has no ID")
	case m.SenderID == "":
		return errors.Errorf("message %s has no sender", m.ID)
	case m.ReceiverID == "":
		return errors.Errorf("message %s has no receiver", m.ID)
	}

	switch m.Type {
	case TextType:
		if m.ReceiverID == BroadcastReceiver {
			return errors.Errorf(
				"peer message %s is addressed to the broadcast receiver", m.ID)
		}
	case AdminBroadcastType:
		if m.ReceiverID != BroadcastReceiver {
			return errors.Errorf(
				"broadcast %s is addressed to %s", m.ID, m.ReceiverID)
		}
	default:
		return errors.Errorf("message %s has unknown type %d", m.ID, m.Type)
	}
	return nil
}

// EnvelopeKind tags the variant carried by an Envelope.
type EnvelopeKind string

const (
	PeerMessageKind    EnvelopeKind = "peer-message"
	AdminBroadcastKind EnvelopeKind = "admin-broadcast"
)

// Envelope is the realtime payload: a closed union of a peer message or an
// administrative broadcast. It is decoded at the channel boundary so nothing
// untyped reaches the store.
type Envelope struct {
	Kind    EnvelopeKind `json:"kind"`
	Message Message      `json:"message"`
}

// NewEnvelope wraps the message in the Envelope variant matching its type.
func NewEnvelope(m Message) Envelope {
	kind := PeerMessageKind
	if m.IsBroadcast() {
		kind = AdminBroadcastKind
	}
	return Envelope{Kind: kind, Message: m}
}

// Encode serializes the Envelope for publishing.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a realtime payload into a valid Message. Any payload
// that is not a well-formed, internally consistent Envelope is rejected with
// an error wrapping ErrMalformedPayload.
func DecodeEnvelope(payload []byte) (Message, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Message{}, errors.Wrap(ErrMalformedPayload, err.Error())
	}

	switch e.Kind {
	case PeerMessageKind:
		if e.Message.Type != TextType {
			return Message{}, errors.Wrapf(ErrMalformedPayload,
				"peer message envelope carries type %s", e.Message.Type)
		}
	case AdminBroadcastKind:
		if e.Message.Type != AdminBroadcastType {
			return Message{}, errors.Wrapf(ErrMalformedPayload,
				"broadcast envelope carries type %s", e.Message.Type)
		}
	default:
		return Message{}, errors.Wrapf(ErrMalformedPayload,
			"unknown envelope kind %q", e.Kind)
	}

	if err := e.Message.Validate(); err != nil {
		return Message{}, errors.Wrap(ErrMalformedPayload, err.Error())
	}

	return e.Message, nil
}
