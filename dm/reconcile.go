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
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/dmsync/metrics"
	"gitlab.com/elixxir/dmsync/stoppable"
	"gitlab.com/elixxir/dmsync/storage/versioned"
)

const (
	reconcilerPrefix  = "dmReconciler"
	lastSyncKey       = "lastSyncAt"
	lastSyncVersion   = 0
	reconcilerStopper = "DmReconciler"
)

// ReconcilerParams configures the Reconciler.
type ReconcilerParams struct {
	// MinSyncInterval is the minimum time between two full history pulls.
	// It keeps rapid restarts from hammering the backend.
	MinSyncInterval time.Duration

	// CheckPeriod is how often the background loop asks for a pass. Passes
	// inside MinSyncInterval are skipped.
	CheckPeriod time.Duration

	// FetchBroadcasts also pulls the administrative broadcast table.
	FetchBroadcasts bool
}

// GetDefaultReconcilerParams returns the default ReconcilerParams.
func GetDefaultReconcilerParams() ReconcilerParams {
	return ReconcilerParams{
		MinSyncInterval: 15 * time.Minute,
		CheckPeriod:     time.Minute,
		FetchBroadcasts: true,
	}
}

// SyncReport describes what a call to Reconcile did.
type SyncReport struct {
	Skipped  bool
	Failed   bool
	Fetched  int
	Appended int
}

// String prints the report for logging.
func (sr SyncReport) String() string {
	switch {
	case sr.Skipped:
		return "skipped"
	case sr.Failed:
		return "failed"
	default:
		return "fetched " + strconv.Itoa(sr.Fetched) + ", appended " +
			strconv.Itoa(sr.Appended)
	}
}

// Reconciler pulls the full remote history for one identity and merges it
// into the local store. It is best effort: failures are logged, never
// returned, and leave lastSyncAt untouched so the next pass retries.
type Reconciler struct {
	identityID string
	remote     RemoteStore
	store      MessageStore
	kv         *versioned.KV
	params     ReconcilerParams

	// merged holds IDs already merged during this process lifetime
	merged map[string]struct{}

	// reads is told about every pass that added messages, if set
	reads *ReadState

	// inProgress is 1 while a pass is running
	inProgress uint32
}

// NewReconciler builds a Reconciler. lastSyncAt is kept in kv under the
// identity's prefix.
func NewReconciler(identityID string, remote RemoteStore, store MessageStore,
	kv *versioned.KV, params ReconcilerParams) (*Reconciler, error) {
	rKV, err := kv.Prefix(reconcilerPrefix)
	if err != nil {
		return nil, err
	}
	if rKV, err = rKV.Prefix(identityID); err != nil {
		return nil, errors.WithMessagef(err,
			"invalid identity %q for reconciler", identityID)
	}

	return &Reconciler{
		identityID: identityID,
		remote:     remote,
		store:      store,
		kv:         rKV,
		params:     params,
		merged:     make(map[string]struct{}),
	}, nil
}

// TrackReads makes every pass that adds messages update reads. It must be
// called before StartProcesses.
func (r *Reconciler) TrackReads(reads *ReadState) {
	r.reads = reads
}

// LastSync returns the time of the last successful pass. The boolean is false
// if no pass has ever completed.
func (r *Reconciler) LastSync() (time.Time, bool) {
	obj, err := r.kv.Get(lastSyncKey, lastSyncVersion)
	if err != nil {
		if r.kv.Exists(err) {
			jww.WARN.Printf("[DM Sync] Failed to load last sync time: %+v",
				err)
		}
		return time.Time{}, false
	}

	var ts time.Time
	if err = ts.UnmarshalBinary(obj.Data); err != nil {
		jww.WARN.Printf("[DM Sync] Failed to decode last sync time: %+v", err)
		return time.Time{}, false
	}
	return ts, true
}

// Reconcile runs one reconciliation pass unless the last successful pass
// was less than MinSyncInterval ago or another pass is already running.
func (r *Reconciler) Reconcile(ctx context.Context) SyncReport {
	if !atomic.CompareAndSwapUint32(&r.inProgress, 0, 1) {
		jww.DEBUG.Printf("[DM Sync] Pass already in progress for %s",
			r.identityID)
		metrics.SyncRuns.WithLabelValues(metrics.SyncSkipped).Inc()
		return SyncReport{Skipped: true}
	}
	defer atomic.StoreUint32(&r.inProgress, 0)

	now := netTime.Now()
	if last, ok := r.LastSync(); ok && now.Sub(last) < r.params.MinSyncInterval {
		jww.DEBUG.Printf("[DM Sync] Skipping pass for %s, last sync was %s "+
			"ago", r.identityID, now.Sub(last))
		metrics.SyncRuns.WithLabelValues(metrics.SyncSkipped).Inc()
		return SyncReport{Skipped: true}
	}

	fetched, err := r.fetch(ctx)
	if err != nil {
		jww.WARN.Printf("[DM Sync] Reconciliation for %s failed, will retry "+
			"on the next pass: %+v", r.identityID, err)
		metrics.SyncRuns.WithLabelValues(metrics.SyncFailed).Inc()
		return SyncReport{Failed: true}
	}

	appended := r.merge(fetched)
	if appended > 0 && r.reads != nil {
		r.reads.Synced(ctx)
	}

	if err = r.setLastSync(now); err != nil {
		jww.ERROR.Printf("[DM Sync] Failed to store last sync time: %+v", err)
	}

	report := SyncReport{Fetched: len(fetched), Appended: appended}
	jww.INFO.Printf("[DM Sync] Reconciled %s: %s", r.identityID, report)
	metrics.SyncRuns.WithLabelValues(metrics.SyncOK).Inc()
	return report
}

// StartProcesses runs Reconcile immediately and then every CheckPeriod until
// the returned Stoppable is closed.
func (r *Reconciler) StartProcesses() stoppable.Stoppable {
	stop := stoppable.NewSingle(reconcilerStopper)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer stop.ToStopped()
		defer cancel()

		ticker := time.NewTicker(r.params.CheckPeriod)
		defer ticker.Stop()

		done := make(chan struct{})
		go func() {
			select {
			case <-stop.Quit():
				cancel()
			case <-done:
			}
		}()
		defer close(done)

		r.Reconcile(ctx)
		for {
			select {
			case <-stop.Quit():
				return
			case <-ticker.C:
				r.Reconcile(ctx)
			}
		}
	}()

	return stop
}

// fetch pulls both directions of the history and, if enabled, broadcasts.
func (r *Reconciler) fetch(ctx context.Context) ([]Message, error) {
	received, err := r.remote.FetchReceived(ctx, r.identityID)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to fetch received messages")
	}

	sent, err := r.remote.FetchSent(ctx, r.identityID)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to fetch sent messages")
	}

	all := append(received, sent...)

	if r.params.FetchBroadcasts {
		broadcasts, err := r.remote.FetchBroadcasts(ctx)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to fetch broadcasts")
		}
		all = append(all, broadcasts...)
	}

	return all, nil
}

// merge appends every fetched message not already merged in this process
// lifetime. It returns how many were new to the store.
func (r *Reconciler) merge(fetched []Message) int {
	if len(r.merged) == 0 {
		known, err := r.store.All()
		if err != nil {
			jww.WARN.Printf("[DM Sync] Could not list local messages: %+v", err)
		}
		for _, m := range known {
			r.merged[m.ID] = struct{}{}
		}
	}

	appended := 0
	for _, m := range fetched {
		if _, done := r.merged[m.ID]; done {
			continue
		}

		isNew, err := r.store.Append(m)
		if err != nil {
			jww.WARN.Printf("[DM Sync] Failed to store message %s: %+v",
				m.ID, err)
			continue
		}
		r.merged[m.ID] = struct{}{}
		if isNew {
			appended++
		}
	}

	metrics.MessagesAppended.WithLabelValues(metrics.SourceSync).Add(
		float64(appended))
	return appended
}

func (r *Reconciler) setLastSync(ts time.Time) error {
	data, err := ts.MarshalBinary()
	if err != nil {
		return err
	}
	return r.kv.Set(lastSyncKey, versioned.NewObject(lastSyncVersion, data))
}
