////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every flag name to form its environment
// variable, e.g. DMSYNC_IDENTITY.
const envPrefix = "DMSYNC"

// Execute adds all child commands to the root command and sets flags
// appropriately.  This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// profiler is stopped when the command finishes
var profiler interface{ Stop() }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dmsync",
	Short: "Direct messaging client with offline sync and realtime delivery",
	Args:  cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))

		if dir := viper.GetString(profileCpuFlag); dir != "" {
			profiler = profile.Start(profile.CPUProfile,
				profile.ProfilePath(dir), profile.NoShutdownHook)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// init is the initialization function for Cobra which defines commands
// and flags.
func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety, unless there's a
	// very good reason not to have them as local params to sub command."
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Path to a config file (yaml, json or toml)")
	bindPersistentFlag(configFlag)

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	bindPersistentFlag(logLevelFlag)

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	bindPersistentFlag(logFlag)

	rootCmd.PersistentFlags().StringP(identityFlag, "i", "",
		"Identity to act as")
	bindPersistentFlag(identityFlag)

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "",
		"Sets the storage directory for local messages. Empty keeps "+
			"everything in memory")
	bindPersistentFlag(sessionFlag)

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password to the storage directory")
	bindPersistentFlag(passwordFlag)

	rootCmd.PersistentFlags().String(backendFlag, "ekv",
		"Local message store backend (ekv or sqlite)")
	bindPersistentFlag(backendFlag)

	rootCmd.PersistentFlags().String(databaseUrlFlag, "",
		"PostgreSQL URL of the remote message store. Empty uses an "+
			"in-memory dummy")
	bindPersistentFlag(databaseUrlFlag)

	rootCmd.PersistentFlags().String(redisUrlFlag, "",
		"Redis URL for realtime delivery. Empty uses an in-process broker")
	bindPersistentFlag(redisUrlFlag)

	rootCmd.PersistentFlags().Duration(minSyncIntervalFlag, 0,
		"Minimum time between reconciliation passes (0 uses the default)")
	bindPersistentFlag(minSyncIntervalFlag)

	rootCmd.PersistentFlags().Int(publishRateFlag, 0,
		"Maximum realtime publishes per second (0 uses the default)")
	bindPersistentFlag(publishRateFlag)

	rootCmd.PersistentFlags().String(profileCpuFlag, "",
		"Enable cpu profiling and write the profile to this directory")
	bindPersistentFlag(profileCpuFlag)
}

// initConfig reads in the config file and environment variables. Flags take
// precedence over both.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPath := viper.GetString(configFlag)
	if configPath == "" {
		return
	}

	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		jww.FATAL.Panicf("Failed to read config file %s: %+v",
			configPath, err)
	}
}

func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}

	jww.INFO.Println(Version())
}

// bindPersistentFlag binds a root persistent flag to viper under its own
// name.
func bindPersistentFlag(name string) {
	err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind flag %s: %+v", name, err)
	}
}

// bindFlagHelper binds a command flag to viper. Flags shared between
// subcommands are bound in PreRun so the running command owns the key.
func bindFlagHelper(key string, command *cobra.Command) {
	err := viper.BindPFlag(key, command.Flags().Lookup(key))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind flag %s: %+v", key, err)
	}
}
