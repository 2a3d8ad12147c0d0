////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package messenger

import (
	"encoding/json"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/realtime"
)

// Local message store backends.
const (
	BackendEKV    = "ekv"
	BackendSQLite = "sqlite"
)

// Params holds everything needed to build a Messenger.
type Params struct {
	// Identity is the user this device acts as.
	Identity string

	// StoragePath is the directory of the on-device storage. An empty path
	// keeps everything in memory.
	StoragePath     string
	StoragePassword string `json:"-"`

	// Backend selects the local message store, BackendEKV or BackendSQLite.
	Backend string

	// DatabaseURL is the PostgreSQL remote store. Empty uses an in-memory
	// dummy remote.
	DatabaseURL string `json:"-"`

	// RedisURL is the realtime pub/sub server. Empty uses an in-process
	// broker.
	RedisURL string `json:"-"`

	Reconciler dm.ReconcilerParams
	Realtime   realtime.Params
}

// GetDefaultParams returns a Params object containing the default
// parameters. Identity must still be set.
func GetDefaultParams() Params {
	return Params{
		Backend:    BackendEKV,
		Reconciler: dm.GetDefaultReconcilerParams(),
		Realtime:   realtime.GetDefaultParams(),
	}
}

// GetParameters returns the default Params, or override with given
// parameters, if set.
func GetParameters(params string) (Params, error) {
	p := GetDefaultParams()
	if len(params) > 0 {
		err := json.Unmarshal([]byte(params), &p)
		if err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
