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

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/dmsync/dm"
)

// broadcastCmd sends an administrative broadcast to every user.
var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "Send an administrative broadcast to every user",
	Args:  cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlagHelper(messageFlag, cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		msg, err := dm.SendBroadcast(ctx, m.Identity(),
			viper.GetString(messageFlag), m.Remote(), m.Channel())
		if err != nil {
			jww.FATAL.Panicf("Failed to broadcast: %+v", err)
		}
		fmt.Printf("Broadcast %s\n", msg.ID)
	},
}

func init() {
	broadcastCmd.Flags().StringP(messageFlag, "m", "",
		"Broadcast text")

	rootCmd.AddCommand(broadcastCmd)
}
