////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestMessage_InConversation(t *testing.T) {
	m := newTestMessage(1, "alice", "bob")
	require.True(t, m.InConversation("alice", "bob"))
	require.True(t, m.InConversation("bob", "alice"))
	require.False(t, m.InConversation("alice", "carol"))

	b := newTestBroadcast(1)
	require.True(t, b.IsBroadcast())
	require.True(t, b.InConversation("alice", "carol"))
}

func TestSortMessages_TieBreak(t *testing.T) {
	a := newTestMessage(1, "alice", "bob")
	b := newTestMessage(1, "alice", "bob")
	b.ID = "msg0"
	c := newTestMessage(0, "bob", "alice")

	msgs := []Message{a, b, c}
	SortMessages(msgs)
	require.Equal(t, []string{"msg0", "msg0", "msg1"},
		[]string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	require.Equal(t, "bob", msgs[0].SenderID)
	require.Equal(t, "alice", msgs[1].SenderID)
}

func Test_mergeHistory(t *testing.T) {
	cached := []Message{newTestMessage(2, "a", "b"), newTestMessage(1, "b", "a")}
	fresh := []Message{newTestMessage(1, "b", "a"), newTestMessage(3, "a", "b")}
	fresh[0].Read = true

	merged := mergeHistory(cached, fresh)
	require.Len(t, merged, 3)
	require.Equal(t, "msg1", merged[0].ID)
	require.True(t, merged[0].Read)
	require.Equal(t, "msg3", merged[2].ID)
}

func TestMessage_JSON(t *testing.T) {
	m := newTestMessage(4, "alice", "bob")
	data, err := json.Marshal(m)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Equal(t, "text", raw["type"])
	require.Equal(t, float64(m.Timestamp.UnixMilli()), raw["timestamp"])
	_, hasReply := raw["replyToId"]
	require.False(t, hasReply)

	m.ReplyToID = "msg1"
	data, err = json.Marshal(m)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, m.ID, decoded.ID)
	require.Equal(t, "msg1", decoded.ReplyToID)
	require.True(t, m.Timestamp.Equal(decoded.Timestamp))
}

func TestMessage_Validate(t *testing.T) {
	valid := newTestMessage(1, "alice", "bob")
	require.NoError(t, valid.Validate())
	require.NoError(t, newTestBroadcast(1).Validate())

	noID := valid
	noID.ID = ""
	require.Error(t, noID.Validate())

	toEveryone := valid
	toEveryone.ReceiverID = BroadcastReceiver
	require.Error(t, toEveryone.Validate())

	misaddressed := newTestBroadcast(1)
	misaddressed.ReceiverID = "bob"
	require.Error(t, misaddressed.Validate())
}

func TestDecodeEnvelope(t *testing.T) {
	m := newTestMessage(1, "alice", "bob")
	payload, err := NewEnvelope(m).Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(payload)
	require.NoError(t, err)
	require.Equal(t, m.ID, decoded.ID)
	require.Equal(t, m.Content, decoded.Content)

	b := newTestBroadcast(2)
	require.Equal(t, AdminBroadcastKind, NewEnvelope(b).Kind)
}

func TestDecodeEnvelope_Malformed(t *testing.T) {
	payloads := map[string]string{
		"not json":     `{"kind":`,
		"unknown kind": `{"kind":"typing","message":{"id":"1","senderId":"a","receiverId":"b","type":"text"}}`,
		"kind mismatch": `{"kind":"admin-broadcast","message":{"id":"1",` +
			`"senderId":"a","receiverId":"*","type":"text"}}`,
		"missing id":      `{"kind":"peer-message","message":{"senderId":"a","receiverId":"b","type":"text"}}`,
		"unknown type":    `{"kind":"peer-message","message":{"id":"1","senderId":"a","receiverId":"b","type":"poll"}}`,
		"peer to sentinel": `{"kind":"peer-message","message":{"id":"1","senderId":"a","receiverId":"*","type":"text"}}`,
	}

	for name, p := range payloads {
		_, err := DecodeEnvelope([]byte(p))
		require.Error(t, err, name)
		require.True(t, errors.Is(err, ErrMalformedPayload), name)
	}
}
