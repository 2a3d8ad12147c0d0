////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

// Package messenger wires the direct messaging components for one identity
// on one device.
package messenger

import (
	"context"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/dm/remote"
	"gitlab.com/elixxir/dmsync/dm/storage"
	"gitlab.com/elixxir/dmsync/realtime"
	"gitlab.com/elixxir/dmsync/stoppable"
	"gitlab.com/elixxir/dmsync/storage/versioned"
)

const (
	stopTimeout    = 5 * time.Second
	processesName  = "Messenger"
)

// Messenger owns every component for one identity.
type Messenger struct {
	identity   string
	kv         *versioned.KV
	store      dm.MessageStore
	remote     dm.RemoteStore
	gate       dm.FriendGate
	channel    dm.Channel
	reconciler *dm.Reconciler
	controller *dm.Controller

	closers   []func() error
	processes stoppable.Stoppable
	mux       sync.Mutex
}

// New builds a Messenger from params, connecting to the remote store and
// the realtime server if they are configured. cb may be nil.
func New(ctx context.Context, params Params,
	cb dm.MessageReceivedCallback) (*Messenger, error) {
	if params.Identity == "" {
		return nil, errors.New("an identity is required")
	}

	var closers []func() error
	fail := func(err error) (*Messenger, error) {
		for _, c := range closers {
			if cErr := c(); cErr != nil {
				jww.WARN.Printf("[Messenger] Cleanup failed: %+v", cErr)
			}
		}
		return nil, err
	}

	kv, err := newKV(params)
	if err != nil {
		return fail(err)
	}

	var store dm.MessageStore
	switch params.Backend {
	case BackendEKV, "":
		store, err = dm.NewLocalStore(kv, params.Identity)
	case BackendSQLite:
		dbPath := ""
		if params.StoragePath != "" {
			dbPath = filepath.Join(params.StoragePath,
				sqliteFileName(params.Identity))
		}
		store, err = storage.NewMessageStore(dbPath)
		if c, ok := store.(io.Closer); ok && err == nil {
			closers = append(closers, c.Close)
		}
	default:
		err = errors.Errorf("unknown storage backend %q", params.Backend)
	}
	if err != nil {
		return fail(errors.WithMessage(err, "failed to open message store"))
	}

	var rs dm.RemoteStore
	var gate dm.FriendGate
	if params.DatabaseURL == "" {
		dummy := dm.NewDummyRemote()
		rs, gate = dummy, dummy
	} else {
		pg, err := remote.New(ctx, params.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { pg.Close(); return nil })
		if err = pg.Migrate(ctx); err != nil {
			return fail(err)
		}
		rs, gate = pg, pg
	}

	var channel dm.Channel
	if params.RedisURL == "" {
		jww.WARN.Printf("[Messenger] No redis URL configured, realtime " +
			"delivery only reaches this process")
		channel = realtime.NewBroker(params.Realtime)
	} else {
		rc, err := realtime.NewRedisChannel(ctx, params.RedisURL,
			params.Realtime)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, rc.Close)
		channel = rc
	}

	m, err := NewWithComponents(params.Identity, kv, store, rs, gate, channel,
		params.Reconciler, cb)
	if err != nil {
		return fail(err)
	}
	m.closers = closers
	return m, nil
}

// NewWithComponents builds a Messenger from already constructed parts.
func NewWithComponents(identity string, kv *versioned.KV,
	store dm.MessageStore, rs dm.RemoteStore, gate dm.FriendGate,
	channel dm.Channel, reconcilerParams dm.ReconcilerParams,
	cb dm.MessageReceivedCallback) (*Messenger, error) {
	reads := dm.NewReadState(identity, store, rs)
	if err := reads.Load(); err != nil {
		return nil, errors.WithMessage(err, "failed to load unread counts")
	}

	md, err := dm.NewMetadata(kv)
	if err != nil {
		return nil, err
	}

	reconciler, err := dm.NewReconciler(identity, rs, store, kv,
		reconcilerParams)
	if err != nil {
		return nil, err
	}

	controller, err := dm.NewController(dm.ControllerParams{
		Identity:   identity,
		Store:      store,
		Remote:     rs,
		Gate:       gate,
		Channel:    channel,
		Reads:      reads,
		Metadata:   md,
		Reconciler: reconciler,
		Callback:   cb,
	})
	if err != nil {
		return nil, err
	}

	return &Messenger{
		identity:   identity,
		kv:         kv,
		store:      store,
		remote:     rs,
		gate:       gate,
		channel:    channel,
		reconciler: reconciler,
		controller: controller,
	}, nil
}

// Identity returns the identity the Messenger acts as.
func (m *Messenger) Identity() string {
	return m.identity
}

// Controller returns the conversation controller.
func (m *Messenger) Controller() *dm.Controller {
	return m.controller
}

// Remote returns the remote store.
func (m *Messenger) Remote() dm.RemoteStore {
	return m.remote
}

// Channel returns the realtime channel.
func (m *Messenger) Channel() dm.Channel {
	return m.channel
}

// Reconcile runs one reconciliation pass now.
func (m *Messenger) Reconcile(ctx context.Context) dm.SyncReport {
	return m.reconciler.Reconcile(ctx)
}

// StartProcesses subscribes to realtime delivery and starts the periodic
// reconciliation loop.
func (m *Messenger) StartProcesses() (stoppable.Stoppable, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.processes != nil && !m.processes.IsStopped() {
		return nil, errors.New("processes are already running")
	}

	multi := stoppable.NewMulti(processesName)
	subs, err := m.controller.Start()
	if err != nil {
		return nil, err
	}
	multi.Add(subs)
	multi.Add(m.reconciler.StartProcesses())

	m.processes = multi
	jww.INFO.Printf("[Messenger] Started processes for %s", m.identity)
	return multi, nil
}

// Close stops the processes and releases every connection.
func (m *Messenger) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()

	var errs []error
	if m.processes != nil && !m.processes.IsStopped() {
		if err := m.processes.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := stoppable.WaitForStopped(m.processes, stopTimeout); err != nil {
			errs = append(errs, err)
		}
	}

	for _, c := range m.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil

	if len(errs) > 0 {
		return errors.Errorf("failed to close messenger: %v", errs)
	}
	return nil
}

// sqliteFileName is the database file of identity's message store inside
// the storage directory.
func sqliteFileName(identity string) string {
	return "messages-" + url.PathEscape(identity) + ".db"
}

// newKV opens the on-device KV. An empty storage path keeps it in memory.
func newKV(params Params) (*versioned.KV, error) {
	if params.StoragePath == "" {
		jww.WARN.Printf("[Messenger] No storage path specified! Using " +
			"temporary in-memory storage")
		return versioned.NewKV(ekv.MakeMemstore()), nil
	}

	if params.StoragePassword == "" {
		jww.WARN.Printf("[Messenger] Storage at %s is not password "+
			"protected", params.StoragePath)
	}

	fs, err := ekv.NewFilestore(params.StoragePath, params.StoragePassword)
	if err != nil {
		return nil, errors.WithMessage(err,
			"failed to create storage session")
	}
	return versioned.NewKV(fs), nil
}
