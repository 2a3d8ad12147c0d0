////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/elixxir/ekv"
)

// Getting a key that was never written returns an error that ekv reports as
// not existing.
func TestKV_Get_NotFound(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	result, err := kv.Get("missing", 0)
	require.Error(t, err)
	require.Nil(t, result)
	require.False(t, kv.Exists(err))
}

// Set followed by Get returns the same payload.
func TestKV_Set_Get(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())

	require.NoError(t, kv.Set("key", NewObject(1, []byte("payload"))))

	loaded, err := kv.Get("key", 1)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), loaded.Data)
	require.Equal(t, uint64(1), loaded.Version)

	// A different version is a different key
	_, err = kv.Get("key", 0)
	require.Error(t, err)
}

// Deleted keys can no longer be loaded.
func TestKV_Delete(t *testing.T) {
	kv := NewKV(ekv.MakeMemstore())
	require.NoError(t, kv.Set("key", NewObject(0, []byte("payload"))))
	require.NoError(t, kv.Delete("key", 0))

	_, err := kv.Get("key", 0)
	require.Error(t, err)
}

// Prefixed KVs share the backing store but not the keyspace.
func TestKV_Prefix(t *testing.T) {
	root := NewKV(ekv.MakeMemstore())

	alice, err := root.Prefix("alice")
	require.NoError(t, err)
	bob, err := root.Prefix("bob")
	require.NoError(t, err)

	require.Equal(t, "alice/", alice.GetPrefix())
	require.Equal(t, "alice/key_0", alice.GetFullKey("key", 0))

	require.NoError(t, alice.Set("key", NewObject(0, []byte("a"))))
	_, err = bob.Get("key", 0)
	require.Error(t, err)

	// Re-deriving the same prefix sees the earlier write
	again, err := root.Prefix("alice")
	require.NoError(t, err)
	loaded, err := again.Get("key", 0)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), loaded.Data)
}

// Invalid prefixes are rejected.
func TestKV_Prefix_Invalid(t *testing.T) {
	root := NewKV(ekv.MakeMemstore())

	_, err := root.Prefix("")
	require.Error(t, err)

	_, err = root.Prefix("a/b")
	require.Error(t, err)
}
