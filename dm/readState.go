////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/dmsync/metrics"
)

// ReadState tracks unread counts per sender for a single viewer.
//
// The store is the source of truth. The only in-place adjustment is the
// optimistic zero when a conversation is opened; every other change
// recomputes from the store while holding the lock, so two recomputations
// can never both count the same message.
type ReadState struct {
	viewerID string
	store    MessageStore
	remote   RemoteStore

	counts map[string]int

	// active is the peer whose conversation is open, empty if none
	active string

	// generation is bumped every time the active conversation changes so
	// completions for a previous conversation can be discarded
	generation uint64

	mux sync.Mutex
}

// NewReadState builds a tracker for viewerID. Call Load before use.
func NewReadState(viewerID string, store MessageStore,
	remote RemoteStore) *ReadState {
	return &ReadState{
		viewerID: viewerID,
		store:    store,
		remote:   remote,
		counts:   make(map[string]int),
	}
}

// Load computes the initial counts from the store.
func (rs *ReadState) Load() error {
	return rs.Rederive()
}

// Rederive recomputes every count from scratch.
func (rs *ReadState) Rederive() error {
	rs.mux.Lock()
	defer rs.mux.Unlock()

	counts, err := rs.derive()
	if err != nil {
		return err
	}
	rs.counts = counts
	rs.updateGauge()
	return nil
}

// Synced is called after a reconciliation pass added messages to the store.
// Anything new from the open conversation is marked read, then every count
// is rederived.
func (rs *ReadState) Synced(ctx context.Context) {
	if peerID, ok := rs.Active(); ok {
		rs.markRead(ctx, peerID)
	}

	if err := rs.Rederive(); err != nil {
		jww.WARN.Printf("[DM Reads] Failed to rederive counts after sync: "+
			"%+v", err)
	}
}

// Count returns the number of unread messages from senderID.
func (rs *ReadState) Count(senderID string) int {
	rs.mux.Lock()
	defer rs.mux.Unlock()
	return rs.counts[senderID]
}

// Counts returns a copy of all non-zero counts keyed on sender.
func (rs *ReadState) Counts() map[string]int {
	rs.mux.Lock()
	defer rs.mux.Unlock()

	out := make(map[string]int, len(rs.counts))
	for sender, n := range rs.counts {
		if n > 0 {
			out[sender] = n
		}
	}
	return out
}

// Total returns the sum of all unread counts.
func (rs *ReadState) Total() int {
	rs.mux.Lock()
	defer rs.mux.Unlock()
	return rs.total()
}

// Active returns the peer whose conversation is open.
func (rs *ReadState) Active() (string, bool) {
	rs.mux.Lock()
	defer rs.mux.Unlock()
	return rs.active, rs.active != ""
}

// Opened is called when the viewer opens the conversation with peerID. The
// count is zeroed immediately, then the messages are marked read in the
// store and at the remote and the counts rederived. If the active
// conversation changes before the remote call returns, the rederive is left
// to whoever changed it.
func (rs *ReadState) Opened(ctx context.Context, peerID string) {
	rs.mux.Lock()
	rs.active = peerID
	rs.generation++
	gen := rs.generation
	delete(rs.counts, peerID)
	rs.updateGauge()
	rs.mux.Unlock()

	rs.markRead(ctx, peerID)

	if !rs.isCurrent(gen) {
		jww.DEBUG.Printf("[DM Reads] Conversation changed while marking %s "+
			"read, dropping result", peerID)
		return
	}

	if err := rs.Rederive(); err != nil {
		jww.WARN.Printf("[DM Reads] Failed to rederive counts: %+v", err)
	}
}

// Closed is called when the viewer leaves the conversation with peerID. One
// more mark-read catches anything that arrived just before the close.
func (rs *ReadState) Closed(ctx context.Context, peerID string) {
	rs.mux.Lock()
	if rs.active == peerID {
		rs.active = ""
		rs.generation++
	}
	rs.mux.Unlock()

	rs.markRead(ctx, peerID)

	if err := rs.Rederive(); err != nil {
		jww.WARN.Printf("[DM Reads] Failed to rederive counts: %+v", err)
	}
}

// Incoming is called after a new message has been appended to the store. If
// the sender's conversation is open the message is marked read. The sender's
// count is then recomputed from the store.
func (rs *ReadState) Incoming(ctx context.Context, msg Message) {
	if msg.ReceiverID != rs.viewerID || msg.SenderID == rs.viewerID ||
		msg.Read {
		return
	}

	if active, _ := rs.Active(); active == msg.SenderID {
		rs.markRead(ctx, msg.SenderID)
	}

	rs.mux.Lock()
	defer rs.mux.Unlock()

	n, err := rs.deriveSender(msg.SenderID)
	if err != nil {
		jww.WARN.Printf("[DM Reads] Failed to count messages from %s: %+v",
			msg.SenderID, err)
		return
	}
	if n == 0 {
		delete(rs.counts, msg.SenderID)
	} else {
		rs.counts[msg.SenderID] = n
	}
	rs.updateGauge()
}

// markRead marks everything from peerID read locally and then remotely.
// Remote failures are logged; the next open or close retries.
func (rs *ReadState) markRead(ctx context.Context, peerID string) {
	n, err := rs.store.MarkRead(peerID, rs.viewerID)
	if err != nil {
		jww.ERROR.Printf("[DM Reads] Failed to mark messages from %s read "+
			"locally: %+v", peerID, err)
	} else if n > 0 {
		jww.DEBUG.Printf("[DM Reads] Marked %d messages from %s read", n,
			peerID)
	}

	if rs.remote == nil {
		return
	}
	if err = rs.remote.MarkRead(ctx, peerID, rs.viewerID); err != nil {
		jww.WARN.Printf("[DM Reads] Failed to mark messages from %s read "+
			"remotely: %+v", peerID, err)
	}
}

// derive and deriveSender must be called with the lock held.
func (rs *ReadState) derive() (map[string]int, error) {
	all, err := rs.store.All()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, m := range all {
		if m.ReceiverID == rs.viewerID && m.SenderID != rs.viewerID &&
			!m.Read {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}

func (rs *ReadState) deriveSender(senderID string) (int, error) {
	msgs, err := rs.store.Query(senderID, rs.viewerID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, m := range msgs {
		if m.SenderID == senderID && m.ReceiverID == rs.viewerID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (rs *ReadState) isCurrent(gen uint64) bool {
	rs.mux.Lock()
	defer rs.mux.Unlock()
	return rs.generation == gen
}

func (rs *ReadState) total() int {
	t := 0
	for _, n := range rs.counts {
		t += n
	}
	return t
}

// updateGauge must be called with the lock held.
func (rs *ReadState) updateGauge() {
	metrics.UnreadMessages.Set(float64(rs.total()))
}
