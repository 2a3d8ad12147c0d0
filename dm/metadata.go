////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package dm

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/dmsync/storage/versioned"
)

const (
	metadataPrefix  = "dmMetadata"
	metadataVersion = 0
)

// Metadata holds the per-message and per-conversation user state that is not
// part of a Message: reactions, pinned messages, pinned chats and stars. It
// is stored on the device only.
type Metadata struct {
	kv  *versioned.KV
	mux sync.Mutex
}

// NewMetadata returns a Metadata stored under kv.
func NewMetadata(kv *versioned.KV) (*Metadata, error) {
	mKV, err := kv.Prefix(metadataPrefix)
	if err != nil {
		return nil, err
	}
	return &Metadata{kv: mKV}, nil
}

// loadJSON reads key into v. It returns false if the key does not exist.
func (md *Metadata) loadJSON(key string, v interface{}) (bool, error) {
	obj, err := md.kv.Get(key, metadataVersion)
	if err != nil {
		if md.kv.Exists(err) {
			return false, errors.WithMessagef(err, "failed to load %s", key)
		}
		return false, nil
	}
	if err = json.Unmarshal(obj.Data, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode %s", key)
	}
	return true, nil
}

func (md *Metadata) saveJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	return md.kv.Set(key, versioned.NewObject(metadataVersion, data))
}
