////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Handles command-line version functionality

package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// SEMVER is the current semantic version of dmsync.
const SEMVER = "0.1.0"

// Version returns a human readable description of this build.
func Version() string {
	return fmt.Sprintf("dmsync v%s (%s %s/%s)", SEMVER, runtime.Version(),
		runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and dependency information for the binary",
	Long:  "Print the version and dependency information for the binary",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(Version())
	},
}
