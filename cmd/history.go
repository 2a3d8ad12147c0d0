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
)

// historyCmd opens a conversation, printing its history and marking it read.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation with a peer and mark it read",
	Args:  cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlagHelper(peerFlag, cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		peer := viper.GetString(peerFlag)
		c := m.Controller()
		msgs, err := c.Open(ctx, peer)
		if err != nil {
			jww.FATAL.Panicf("Failed to open conversation with %s: %+v",
				peer, err)
		}
		defer c.Close(ctx)

		if pinned, ok, err := c.Pinned(peer); err != nil {
			jww.WARN.Printf("Failed to look up pinned message: %+v", err)
		} else if ok {
			fmt.Print("Pinned: ")
			printMessage(pinned)
		}

		for _, msg := range msgs {
			printMessage(msg)
		}
		fmt.Printf("%d messages\n", len(msgs))
	},
}

func init() {
	historyCmd.Flags().StringP(peerFlag, "d", "",
		"Identity of the peer")

	rootCmd.AddCommand(historyCmd)
}
