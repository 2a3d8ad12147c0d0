////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file                                                               //
////////////////////////////////////////////////////////////////////////////////

package realtime

import (
	"encoding/json"
)

const (
	channelPrefix    = "dm:"
	broadcastChannel = "dm:admin-broadcasts"
)

// ChannelName returns the pub/sub channel an identity receives on.
func ChannelName(identityID string) string {
	return channelPrefix + identityID
}

// BroadcastChannelName returns the pub/sub channel administrative broadcasts
// are published on.
func BroadcastChannelName() string {
	return broadcastChannel
}

// Params configures a Channel implementation.
type Params struct {
	// PublishRate is the maximum number of publishes per second. Zero
	// disables pacing.
	PublishRate int

	// BufferSize is the number of payloads queued per subscriber before new
	// payloads are dropped.
	BufferSize int
}

// paramsDisk will be the marshal-able and umarshal-able object.
type paramsDisk struct {
	PublishRate int
	BufferSize  int
}

// GetDefaultParams returns a Params object containing the default
// parameters.
func GetDefaultParams() Params {
	return Params{
		PublishRate: 100,
		BufferSize:  64,
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

// MarshalJSON adheres to the json.Marshaler interface.
func (p Params) MarshalJSON() ([]byte, error) {
	pDisk := paramsDisk{
		PublishRate: p.PublishRate,
		BufferSize:  p.BufferSize,
	}

	return json.Marshal(&pDisk)
}

// UnmarshalJSON adheres to the json.Unmarshaler interface.
func (p *Params) UnmarshalJSON(data []byte) error {
	pDisk := paramsDisk{}
	err := json.Unmarshal(data, &pDisk)
	if err != nil {
		return err
	}

	*p = Params{
		PublishRate: pDisk.PublishRate,
		BufferSize:  pDisk.BufferSize,
	}

	return nil
}
