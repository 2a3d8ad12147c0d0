////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stoppable provides named handles for background goroutines (the
// sync loop, realtime subscriptions) so their owners can stop them
// deterministically.
package stoppable

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"
)

// Stoppable is a handle for a goroutine that can be asked to stop.
type Stoppable interface {
	Name() string
	GetStatus() Status
	IsRunning() bool
	IsStopping() bool
	IsStopped() bool
	Close() error
}

// Status is the lifecycle state of a Stoppable.
type Status uint32

const (
	Running Status = iota
	Stopping
	Stopped
)

// String prints a human-readable form of the Status for logging.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "INVALID STATUS: " + strconv.FormatUint(uint64(s), 10)
	}
}

const (
	// Interval at which WaitForStopped polls the status
	pollPeriod = 10 * time.Millisecond

	timeoutErr = "stoppable %q timed out after %s waiting to stop; status: %s"
)

// WaitForStopped blocks until the Stoppable reports Stopped or the timeout
// elapses.
func WaitForStopped(s Stoppable, timeout time.Duration) error {
	start := netTime.Now()
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for !s.IsStopped() {
		if netTime.Since(start) > timeout {
			return errors.Errorf(timeoutErr, s.Name(), timeout, s.GetStatus())
		}
		<-ticker.C
	}

	jww.DEBUG.Printf("[Stoppable] %q stopped after %s", s.Name(),
		netTime.Since(start))
	return nil
}
