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

// friendSetter is implemented by remote stores that can record friendships.
type friendSetter interface {
	SetFriendship(ctx context.Context, requesterID, addresseeID string,
		status dm.FriendshipStatus) error
}

// friendCmd records a friendship row in the remote store.
var friendCmd = &cobra.Command{
	Use:   "friend",
	Short: "Record a friendship between this identity and a peer",
	Args:  cobra.NoArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindFlagHelper(peerFlag, cmd)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		setter, ok := m.Remote().(friendSetter)
		if !ok {
			jww.FATAL.Panicf("--%s is required to record friendships",
				databaseUrlFlag)
		}

		status, err := dm.ParseFriendshipStatus(viper.GetString(statusFlag))
		if err != nil {
			jww.FATAL.Panicf("Invalid friendship status: %+v", err)
		}

		peer := viper.GetString(peerFlag)
		err = setter.SetFriendship(ctx, m.Identity(), peer, status)
		if err != nil {
			jww.FATAL.Panicf("%+v", err)
		}
		fmt.Printf("%s -> %s: %s\n", m.Identity(), peer, status)
	},
}

func init() {
	friendCmd.Flags().StringP(peerFlag, "d", "",
		"Identity of the peer")

	friendCmd.Flags().String(statusFlag, dm.FriendAccepted.String(),
		"Friendship status (none, pending or accepted)")
	bindFlagHelper(statusFlag, friendCmd)

	rootCmd.AddCommand(friendCmd)
}
