////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Multi groups several Stoppables so they can be closed together.
type Multi struct {
	name     string
	children []Stoppable
	mux      sync.RWMutex
	once     sync.Once
}

// NewMulti returns an empty Multi.
func NewMulti(name string) *Multi {
	return &Multi{name: name}
}

// Add adds a child Stoppable.
func (m *Multi) Add(s Stoppable) {
	m.mux.Lock()
	m.children = append(m.children, s)
	m.mux.Unlock()
}

// Name returns the name of the Multi and its children.
func (m *Multi) Name() string {
	m.mux.RLock()
	defer m.mux.RUnlock()

	names := make([]string, len(m.children))
	for i, c := range m.children {
		names[i] = c.Name()
	}
	return m.name + ": {" + strings.Join(names, ", ") + "}"
}

// GetStatus returns the least advanced status of all children. An empty
// Multi reports Stopped.
func (m *Multi) GetStatus() Status {
	m.mux.RLock()
	defer m.mux.RUnlock()

	status := Stopped
	for _, c := range m.children {
		if s := c.GetStatus(); s < status {
			status = s
		}
	}
	return status
}

// IsRunning returns true if any child is running.
func (m *Multi) IsRunning() bool { return m.GetStatus() == Running }

// IsStopping returns true if no child is running and at least one is still
// stopping.
func (m *Multi) IsStopping() bool { return m.GetStatus() == Stopping }

// IsStopped returns true when every child is stopped.
func (m *Multi) IsStopped() bool { return m.GetStatus() == Stopped }

// Close closes every child. Errors from children are joined into one.
func (m *Multi) Close() error {
	var errs []string
	m.once.Do(func() {
		m.mux.RLock()
		defer m.mux.RUnlock()

		for _, c := range m.children {
			if err := c.Close(); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})

	if len(errs) > 0 {
		err := errors.Errorf("multi stoppable %q failed to close %d "+
			"children: %s", m.name, len(errs), strings.Join(errs, "; "))
		jww.ERROR.Print(err)
		return err
	}
	return nil
}
