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

// sendCmd sends a direct message to a friend.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a direct message to a friend",
	Args:  cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlagHelper(peerFlag, cmd)
		bindFlagHelper(messageFlag, cmd)
		bindFlagHelper(replyToFlag, cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		peer := viper.GetString(peerFlag)
		text := viper.GetString(messageFlag)
		replyTo := viper.GetString(replyToFlag)

		msg, err := m.Controller().Reply(ctx, peer, text, replyTo)
		if err != nil {
			jww.FATAL.Panicf("Failed to send to %s: %+v", peer, err)
		}

		jww.INFO.Printf("Sent message %s to %s", msg.ID, peer)
		fmt.Printf("Sent %s\n", msg.ID)
	},
}

func init() {
	sendCmd.Flags().StringP(peerFlag, "d", "",
		"Identity of the recipient")

	sendCmd.Flags().StringP(messageFlag, "m", "",
		"Message text to send")

	sendCmd.Flags().String(replyToFlag, "",
		"ID of the message this is a reply to")

	rootCmd.AddCommand(sendCmd)
}
