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
)

// syncCmd runs a single reconciliation pass against the remote store.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull missed messages from the remote store into local storage",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		report := m.Reconcile(ctx)
		fmt.Printf("Sync %s\n", report)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
