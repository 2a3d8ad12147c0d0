////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/dmsync/stoppable"
)

const controllerStopper = "DmController"

// ConversationState is the lifecycle state of the active conversation.
type ConversationState uint32

const (
	Closed ConversationState = iota
	Opening
	Open
)

// String returns a human-readable name for the state.
func (cs ConversationState) String() string {
	switch cs {
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	case Open:
		return "open"
	default:
		return "INVALID CONVERSATION STATE: " + strconv.Itoa(int(cs))
	}
}

// ControllerParams holds everything a Controller is built from. Reconciler
// and Channel may be nil, in which case the controller works offline.
type ControllerParams struct {
	Identity   string
	Store      MessageStore
	Remote     RemoteStore
	Gate       FriendGate
	Channel    Channel
	Reads      *ReadState
	Metadata   *Metadata
	Reconciler *Reconciler

	// Callback is called for every message that arrives over the realtime
	// channel.
	Callback MessageReceivedCallback
}

// Controller is the conversation surface the UI drives. It is the only
// component that consults the FriendGate.
type Controller struct {
	identity   string
	store      MessageStore
	remote     RemoteStore
	gate       FriendGate
	channel    Channel
	reads      *ReadState
	md         *Metadata
	reconciler *Reconciler
	receiver   *receiver

	state      ConversationState
	active     string
	generation uint64
	mux        sync.RWMutex
}

// NewController builds a Controller. It does not subscribe to anything until
// Start is called.
func NewController(p ControllerParams) (*Controller, error) {
	if p.Identity == "" {
		return nil, errors.WithMessage(ErrInvalidPeer, "identity is empty")
	}
	if p.Store == nil || p.Gate == nil || p.Metadata == nil {
		return nil, errors.New("controller requires a store, a friend gate " +
			"and metadata")
	}
	if p.Reads == nil {
		p.Reads = NewReadState(p.Identity, p.Store, p.Remote)
		if err := p.Reads.Load(); err != nil {
			return nil, err
		}
	}
	if p.Reconciler != nil {
		p.Reconciler.TrackReads(p.Reads)
	}

	return &Controller{
		identity:   p.Identity,
		store:      p.Store,
		remote:     p.Remote,
		gate:       p.Gate,
		channel:    p.Channel,
		reads:      p.Reads,
		md:         p.Metadata,
		reconciler: p.Reconciler,
		receiver:   newReceiver(p.Identity, p.Store, p.Reads, p.Callback),
	}, nil
}

// Start subscribes to the identity's realtime channel and to administrative
// broadcasts. Closing the returned Stoppable unsubscribes from both.
func (c *Controller) Start() (stoppable.Stoppable, error) {
	multi := stoppable.NewMulti(controllerStopper)
	if c.channel == nil {
		jww.WARN.Printf("[DM] No realtime channel for %s, only "+
			"reconciliation will deliver messages", c.identity)
		return multi, nil
	}

	sub, err := c.channel.Subscribe(c.identity, c.receiver.Process)
	if err != nil {
		return nil, errors.WithMessagef(err,
			"failed to subscribe %s", c.identity)
	}
	multi.Add(sub)

	bSub, err := c.channel.SubscribeBroadcasts(c.receiver.Process)
	if err != nil {
		if cErr := sub.Close(); cErr != nil {
			jww.WARN.Printf("[DM] Failed to unsubscribe %s: %+v",
				c.identity, cErr)
		}
		return nil, errors.WithMessage(err,
			"failed to subscribe to broadcasts")
	}
	multi.Add(bSub)

	jww.INFO.Printf("[DM] Subscribed %s to realtime delivery", c.identity)
	return multi, nil
}

// Open makes peerID the active conversation and returns its history. The
// cached history is read first, then a reconciliation pass runs and the
// result is merged in. If another conversation is opened before the pass
// finishes, the cached history is returned and the pass result ignored.
func (c *Controller) Open(ctx context.Context, peerID string) (
	[]Message, error) {
	if peerID == "" || peerID == BroadcastReceiver || peerID == c.identity {
		return nil, errors.WithMessagef(ErrInvalidPeer,
			"cannot open conversation with %q", peerID)
	}

	c.mux.Lock()
	previous := c.active
	c.active = peerID
	c.state = Opening
	c.generation++
	gen := c.generation
	c.mux.Unlock()

	if previous != "" && previous != peerID {
		c.reads.Closed(ctx, previous)
	}

	cached, err := c.store.Query(peerID, c.identity)
	if err != nil {
		return nil, err
	}

	c.reads.Opened(ctx, peerID)

	if c.reconciler != nil {
		c.reconciler.Reconcile(ctx)
	}

	if !c.isCurrent(gen) {
		jww.DEBUG.Printf("[DM] Conversation with %s was replaced while "+
			"opening", peerID)
		return cached, nil
	}

	// mark anything the reconciler just merged in
	c.reads.Opened(ctx, peerID)

	fresh, err := c.store.Query(peerID, c.identity)
	if err != nil {
		jww.WARN.Printf("[DM] Failed to requery %s after sync: %+v",
			peerID, err)
		fresh = nil
	}
	history := mergeHistory(cached, fresh)

	c.mux.Lock()
	if c.generation == gen {
		c.state = Open
	}
	c.mux.Unlock()

	return history, nil
}

// Close leaves the active conversation. A final mark-read catches messages
// that arrived just before.
func (c *Controller) Close(ctx context.Context) {
	c.mux.Lock()
	peer := c.active
	c.active = ""
	c.state = Closed
	c.generation++
	c.mux.Unlock()

	if peer != "" {
		c.reads.Closed(ctx, peer)
	}
}

// State returns the state of the active conversation.
func (c *Controller) State() ConversationState {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.state
}

// ActivePeer returns the peer of the active conversation.
func (c *Controller) ActivePeer() (string, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.active, c.active != ""
}

// History returns the locally stored conversation with peerID.
func (c *Controller) History(peerID string) ([]Message, error) {
	return c.store.Query(peerID, c.identity)
}

// Unread returns the unread counts per sender.
func (c *Controller) Unread() map[string]int {
	return c.reads.Counts()
}

// React adds the identity's reaction to messageID. An empty emoji records a
// plain reaction.
func (c *Controller) React(messageID, emoji string) error {
	if emoji == "" {
		return c.md.AddReaction(messageID, c.identity)
	}
	return c.md.AddEmojiReaction(messageID, c.identity, emoji)
}

// Unreact removes the identity's reaction from messageID.
func (c *Controller) Unreact(messageID string) error {
	return c.md.RemoveReaction(messageID, c.identity)
}

// Reactions returns the reaction summary of messageID.
func (c *Controller) Reactions(messageID string) (ReactionSummary, error) {
	return c.md.Reactions(messageID, c.identity)
}

// Pin sets the pinned message of the conversation with peerID.
func (c *Controller) Pin(peerID, messageID string) error {
	return c.md.SetPinned(c.identity, peerID, messageID)
}

// Unpin clears the pinned message of the conversation with peerID.
func (c *Controller) Unpin(peerID string) error {
	return c.md.ClearPinned(c.identity, peerID)
}

// Pinned returns the pinned message of the conversation with peerID. The
// boolean is false if nothing is pinned or the pinned message was deleted.
func (c *Controller) Pinned(peerID string) (Message, bool, error) {
	id, ok, err := c.md.GetPinned(c.identity, peerID)
	if err != nil || !ok {
		return Message{}, false, err
	}
	m, exists := c.store.Get(id)
	return m, exists, nil
}

// PinChat pins or unpins the conversation with peerID in the inbox.
func (c *Controller) PinChat(peerID string, pinned bool) error {
	return c.md.PinChat(c.identity, peerID, pinned)
}

// PinnedChats returns the peers pinned in the inbox.
func (c *Controller) PinnedChats() (map[string]bool, error) {
	return c.md.PinnedChats(c.identity)
}

// Star stars messageID.
func (c *Controller) Star(messageID string) error {
	return c.md.Star(c.identity, messageID)
}

// Unstar removes the star from messageID.
func (c *Controller) Unstar(messageID string) error {
	return c.md.Unstar(c.identity, messageID)
}

// Starred returns the starred messages that still exist.
func (c *Controller) Starred() ([]Message, error) {
	return c.md.StarredDetails(c.identity, c.store)
}

// Delete removes a message from the local store. Pins, stars and replies
// that reference it are left in place.
func (c *Controller) Delete(messageID string) error {
	return c.store.Delete(messageID)
}

func (c *Controller) isCurrent(gen uint64) bool {
	c.mux.RLock()
	defer c.mux.RUnlock()
	return c.generation == gen
}
