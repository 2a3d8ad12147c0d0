////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stoppable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newWorker(name string) *Single {
	s := NewSingle(name)
	go func() {
		<-s.Quit()
		s.ToStopped()
	}()
	return s
}

// Tests that closing a Multi stops every child.
func TestMulti_Close(t *testing.T) {
	m := NewMulti("parent")
	a, b := newWorker("a"), newWorker("b")
	m.Add(a)
	m.Add(b)

	require.True(t, m.IsRunning())
	require.Equal(t, "parent: {a, b}", m.Name())

	require.NoError(t, m.Close())
	require.NoError(t, WaitForStopped(m, time.Second))
	require.True(t, a.IsStopped())
	require.True(t, b.IsStopped())
}

// Tests that the Multi status is the least advanced child status.
func TestMulti_GetStatus(t *testing.T) {
	m := NewMulti("parent")
	require.Equal(t, Stopped, m.GetStatus())

	stuck := NewSingle("stuck")
	m.Add(stuck)
	require.Equal(t, Running, m.GetStatus())

	require.NoError(t, stuck.Close())
	require.Equal(t, Stopping, m.GetStatus())

	stuck.ToStopped()
	require.Equal(t, Stopped, m.GetStatus())
}

// Tests that child close errors are reported.
func TestMulti_Close_ChildError(t *testing.T) {
	child := newWorker("child")
	require.NoError(t, child.Close())

	m := NewMulti("parent")
	m.Add(child)
	require.Error(t, m.Close())
}
