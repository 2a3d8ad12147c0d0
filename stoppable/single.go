////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

const toStoppingErr = "failed to set the status of single stoppable %q to " +
	"stopping when status is %s instead of %s"

// Single stops one goroutine through its quit channel. The goroutine selects
// on Quit and calls ToStopped once it has returned from its work.
type Single struct {
	name   string
	quit   chan struct{}
	status uint32
	once   sync.Once
}

// NewSingle returns a running Single.
func NewSingle(name string) *Single {
	return &Single{
		name:   name,
		quit:   make(chan struct{}),
		status: uint32(Running),
	}
}

// Name returns the name of the Single.
func (s *Single) Name() string {
	return s.name
}

// GetStatus returns the current status of the Single.
func (s *Single) GetStatus() Status {
	return Status(atomic.LoadUint32(&s.status))
}

// IsRunning returns true if the Single has not been asked to stop.
func (s *Single) IsRunning() bool {
	return s.GetStatus() == Running
}

// IsStopping returns true if Close was called but the goroutine has not yet
// reported that it stopped.
func (s *Single) IsStopping() bool {
	return s.GetStatus() == Stopping
}

// IsStopped returns true once the goroutine called ToStopped.
func (s *Single) IsStopped() bool {
	return s.GetStatus() == Stopped
}

// Quit returns a channel that is closed when the Single is asked to stop.
func (s *Single) Quit() <-chan struct{} {
	return s.quit
}

// ToStopped marks the Single as stopped. It must only be called by the
// goroutine the Single controls after it has received on Quit.
func (s *Single) ToStopped() {
	if !atomic.CompareAndSwapUint32(
		&s.status, uint32(Stopping), uint32(Stopped)) {
		jww.WARN.Printf("[Stoppable] %q marked stopped while %s",
			s.name, s.GetStatus())
		atomic.StoreUint32(&s.status, uint32(Stopped))
		return
	}
	jww.TRACE.Printf("[Stoppable] %q switched from %s to %s",
		s.name, Stopping, Stopped)
}

// Close signals the goroutine to stop. Calling it more than once returns an
// error on the later calls.
func (s *Single) Close() error {
	err := errors.Errorf(toStoppingErr, s.name, s.GetStatus(), Running)
	s.once.Do(func() {
		if !atomic.CompareAndSwapUint32(
			&s.status, uint32(Running), uint32(Stopping)) {
			return
		}
		err = nil
		close(s.quit)
	})
	return err
}
