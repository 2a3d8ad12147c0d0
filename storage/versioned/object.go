////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package versioned

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/xx_network/primitives/netTime"
)

// Object is the envelope every value is written in. It records the storage
// version of the payload and when it was written.
type Object struct {
	// Storage version of Data
	Version uint64

	// Set when this object is written
	Timestamp time.Time

	// Serialized payload
	Data []byte
}

// NewObject wraps data in an Object stamped with the current time.
func NewObject(version uint64, data []byte) *Object {
	return &Object{
		Version:   version,
		Timestamp: netTime.Now(),
		Data:      data,
	}
}

// Marshal serializes the Object so it can be stored in an ekv.KeyValue.
func (v *Object) Marshal() []byte {
	d, err := json.Marshal(v)
	if err != nil {
		// All fields are simple types; failing here means memory corruption
		panic(errors.Wrapf(err, "could not marshal versioned object %+v", v))
	}
	return d
}

// Unmarshal deserializes an Object written by Marshal.
func (v *Object) Unmarshal(data []byte) error {
	return json.Unmarshal(data, v)
}
