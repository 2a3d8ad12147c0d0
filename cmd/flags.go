////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

// This is a comprehensive list of CLI flag name constants. Organized by
// subcommand, with root level CLI flags at the top of the list. Newly added
// flags for any existing or new subcommands should be listed and organized
// here. Pulling flags using Viper should use the constants defined here.

const (
	//////////////// Root flags ///////////////////////////////////////////////

	// Storage and identity
	identityFlag = "identity"
	sessionFlag  = "session"
	passwordFlag = "password"
	backendFlag  = "backend"
	configFlag   = "config"

	// Backends
	databaseUrlFlag = "database-url"
	redisUrlFlag    = "redis-url"

	// Tuning
	minSyncIntervalFlag = "min-sync-interval"
	publishRateFlag     = "publish-rate"

	// Logging and profiling
	logLevelFlag   = "logLevel"
	logFlag        = "log"
	profileCpuFlag = "profile-cpu"

	//////////////// Message flags ////////////////////////////////////////////

	peerFlag    = "peer"
	messageFlag = "message"
	replyToFlag = "reply-to"

	//////////////// Listen flags /////////////////////////////////////////////

	waitTimeoutFlag = "waitTimeout"
	metricsAddrFlag = "metrics-addr"

	//////////////// Friend flags /////////////////////////////////////////////

	statusFlag = "status"
)
