////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/dmsync/metrics"
)

// receiver struct for realtime payload handling
type receiver struct {
	identityID string
	store      MessageStore
	reads      *ReadState
	cb         MessageReceivedCallback
}

func newReceiver(identityID string, store MessageStore, reads *ReadState,
	cb MessageReceivedCallback) *receiver {
	return &receiver{
		identityID: identityID,
		store:      store,
		reads:      reads,
		cb:         cb,
	}
}

// String returns a string identifying the receiver for debugging purposes.
func (r *receiver) String() string {
	return "directMessage-" + r.identityID
}

// Process decodes a realtime payload, stores it and updates the unread
// counts. Malformed payloads are dropped.
func (r *receiver) Process(payload []byte) {
	msg, err := DecodeEnvelope(payload)
	if err != nil {
		jww.WARN.Printf("[DM] %s dropping realtime payload: %+v", r, err)
		metrics.RealtimeDropped.Inc()
		return
	}

	if !msg.IsBroadcast() && msg.ReceiverID != r.identityID &&
		msg.SenderID != r.identityID {
		jww.WARN.Printf("[DM] %s dropping message %s addressed to %s", r,
			msg.ID, msg.ReceiverID)
		metrics.RealtimeDropped.Inc()
		return
	}

	isNew, err := r.store.Append(msg)
	if err != nil {
		jww.ERROR.Printf("[DM] %s failed to store message %s: %+v", r, msg.ID,
			err)
		return
	}

	if !isNew {
		jww.TRACE.Printf("[DM] %s ignoring duplicate message %s", r, msg.ID)
		return
	}

	jww.DEBUG.Printf("[DM] %s received %s message %s from %s", r, msg.Type,
		msg.ID, msg.SenderID)
	metrics.MessagesAppended.WithLabelValues(metrics.SourceRealtime).Inc()

	if r.reads != nil {
		r.reads.Incoming(context.Background(), msg)
	}

	if r.cb != nil {
		r.cb(msg, isNew)
	}
}
