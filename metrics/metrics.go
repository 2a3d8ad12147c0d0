////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package metrics holds the Prometheus collectors of the messaging
// subsystem. They register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	SyncSkipped = "skipped"
	SyncOK      = "ok"
	SyncFailed  = "failed"

	SourceSync     = "sync"
	SourceRealtime = "realtime"
	SourceSend     = "send"

	SendOK       = "ok"
	SendRejected = "rejected"
	SendFailed   = "failed"
)

var (
	// SyncRuns counts reconciliation attempts by result.
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_sync_runs_total",
			Help: "Reconciliation passes by result",
		},
		[]string{"result"},
	)

	// MessagesAppended counts new messages written to the local store by
	// the path that delivered them.
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_messages_appended_total",
			Help: "New messages written to the local store",
		},
		[]string{"source"},
	)

	// Sends counts send attempts by result.
	Sends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsync_sends_total",
			Help: "Send attempts by result",
		},
		[]string{"result"},
	)

	// RealtimeDropped counts realtime payloads that were malformed or did
	// not fit a subscriber's buffer.
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmsync_realtime_dropped_total",
			Help: "Realtime payloads dropped",
		},
	)

	// UnreadMessages is the total unread count across all senders.
	UnreadMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmsync_unread_messages",
			Help: "Unread messages across all conversations",
		},
	)
)
