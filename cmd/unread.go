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
	"sort"

	"github.com/spf13/cobra"
)

// unreadCmd prints the unread count of every conversation.
var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print unread message counts per sender",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		m := initMessenger(ctx, nil)
		defer closeMessenger(m)

		counts := m.Controller().Unread()
		senders := make([]string, 0, len(counts))
		total := 0
		for sender, n := range counts {
			senders = append(senders, sender)
			total += n
		}
		sort.Strings(senders)

		for _, sender := range senders {
			fmt.Printf("%s: %d\n", sender, counts[sender])
		}
		fmt.Printf("Total unread: %d\n", total)
	},
}

func init() {
	rootCmd.AddCommand(unreadCmd)
}
