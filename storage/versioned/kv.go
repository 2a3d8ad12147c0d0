////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/elixxir/ekv"
)

// PrefixSeparator joins the nested prefixes of a KV.
const PrefixSeparator = "/"

// Error messages.
const (
	emptyPrefixErr   = "prefix cannot be empty"
	invalidPrefixErr = "prefix %q cannot contain %q"
)

// KV stores versioned objects under a prefix in an ekv.KeyValue. Every
// prefixed KV shares the same underlying storage, so writes made through one
// are visible through all of them.
type KV struct {
	data   ekv.KeyValue
	prefix string
}

// NewKV creates a versioned key/value store backed by anything implementing
// ekv.KeyValue (a Filestore on device, a Memstore in tests).
func NewKV(data ekv.KeyValue) *KV {
	return &KV{data: data}
}

// Get loads the object stored at key for the given version.
func (v *KV) Get(key string, version uint64) (*Object, error) {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("[KV] get %s", fullKey)

	result := &Object{}
	if err := v.data.Get(fullKey, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Set upserts the object at key. The key is versioned with the object's
// Version field.
func (v *KV) Set(key string, object *Object) error {
	fullKey := v.makeKey(key, object.Version)
	jww.TRACE.Printf("[KV] set %s", fullKey)
	return v.data.Set(fullKey, object)
}

// Delete removes the object stored at key for the given version.
func (v *KV) Delete(key string, version uint64) error {
	fullKey := v.makeKey(key, version)
	jww.TRACE.Printf("[KV] delete %s", fullKey)
	return v.data.Delete(fullKey)
}

// Prefix returns a new KV that namespaces every key under the given prefix
// in addition to the current one.
func (v *KV) Prefix(prefix string) (*KV, error) {
	if prefix == "" {
		return nil, errors.New(emptyPrefixErr)
	}
	if strings.Contains(prefix, PrefixSeparator) {
		return nil, errors.Errorf(invalidPrefixErr, prefix, PrefixSeparator)
	}
	return &KV{
		data:   v.data,
		prefix: v.prefix + prefix + PrefixSeparator,
	}, nil
}

// GetPrefix returns the full prefix of the KV.
func (v *KV) GetPrefix() string {
	return v.prefix
}

// GetFullKey returns the key with all prefixes and the version applied.
func (v *KV) GetFullKey(key string, version uint64) string {
	return v.makeKey(key, version)
}

// Exists returns false if the error indicates the element doesn't exist.
func (v *KV) Exists(err error) bool {
	return ekv.Exists(err)
}

func (v *KV) makeKey(key string, version uint64) string {
	return fmt.Sprintf("%s%s_%d", v.prefix, key, version)
}
