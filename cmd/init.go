////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"fmt"

	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/dmsync/dm"
	"gitlab.com/elixxir/dmsync/messenger"
)

// paramsFromViper builds the messenger parameters out of the flags, the
// environment and the config file.
func paramsFromViper() messenger.Params {
	params := messenger.GetDefaultParams()
	params.Identity = viper.GetString(identityFlag)
	params.StoragePath = viper.GetString(sessionFlag)
	params.StoragePassword = viper.GetString(passwordFlag)
	if backend := viper.GetString(backendFlag); backend != "" {
		params.Backend = backend
	}
	params.DatabaseURL = viper.GetString(databaseUrlFlag)
	params.RedisURL = viper.GetString(redisUrlFlag)

	if d := viper.GetDuration(minSyncIntervalFlag); d > 0 {
		params.Reconciler.MinSyncInterval = d
	}
	if r := viper.GetInt(publishRateFlag); r > 0 {
		params.Realtime.PublishRate = r
	}
	return params
}

// initMessenger opens the messenger described by the configuration or
// exits on failure.
func initMessenger(ctx context.Context,
	cb dm.MessageReceivedCallback) *messenger.Messenger {
	params := paramsFromViper()
	if params.Identity == "" {
		jww.FATAL.Panicf("--%s is required", identityFlag)
	}

	jww.DEBUG.Printf("Opening messenger for %s (backend %s, session %q)",
		params.Identity, params.Backend, params.StoragePath)

	m, err := messenger.New(ctx, params, cb)
	if err != nil {
		jww.FATAL.Panicf("Failed to open messenger: %+v", err)
	}
	return m
}

// closeMessenger closes m, logging instead of failing.
func closeMessenger(m *messenger.Messenger) {
	if err := m.Close(); err != nil {
		jww.ERROR.Printf("Failed to close messenger: %+v", err)
	}
}

// printMessage writes msg in a single human readable line.
func printMessage(msg dm.Message) {
	read := " "
	if !msg.Read {
		read = "*"
	}
	reply := ""
	if msg.IsReply() {
		reply = fmt.Sprintf(" (reply to %s)", msg.ReplyToID)
	}
	fmt.Printf("%s [%s] %s -> %s: %s%s  {%s}\n", read,
		msg.Timestamp.Local().Format("2006-01-02 15:04:05"), msg.SenderID,
		msg.ReceiverID, msg.Content, reply, msg.ID)
}
