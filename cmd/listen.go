////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/dmsync/dm"
)

// listenCmd runs the realtime subscription and the periodic reconciler,
// printing every message as it arrives.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive messages in realtime until interrupted",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var received atomic.Int64
		cb := func(msg dm.Message, isNew bool) {
			if !isNew {
				return
			}
			received.Add(1)
			printMessage(msg)
		}

		m := initMessenger(ctx, cb)
		defer closeMessenger(m)

		if addr := viper.GetString(metricsAddrFlag); addr != "" {
			srv := startMetricsServer(addr)
			defer func() {
				if err := srv.Shutdown(ctx); err != nil {
					jww.WARN.Printf("Failed to stop metrics server: %+v", err)
				}
			}()
		}

		if _, err := m.StartProcesses(); err != nil {
			jww.FATAL.Panicf("Failed to start processes: %+v", err)
		}

		var timeout <-chan time.Time
		if wait := viper.GetDuration(waitTimeoutFlag); wait > 0 {
			timeout = time.After(wait)
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			jww.INFO.Printf("Received %s, shutting down", sig)
		case <-timeout:
			jww.INFO.Printf("Wait timeout reached, shutting down")
		}

		fmt.Printf("Received %d new messages\n", received.Load())
		for sender, n := range m.Controller().Unread() {
			fmt.Printf("%s: %d unread\n", sender, n)
		}
	},
}

// startMetricsServer serves the prometheus registry on addr.
func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			jww.ERROR.Printf("Metrics server failed: %+v", err)
		}
	}()
	jww.INFO.Printf("Serving metrics on %s/metrics", addr)
	return srv
}

func init() {
	listenCmd.Flags().Duration(waitTimeoutFlag, 0,
		"Stop listening after this long (0 waits for a signal)")
	bindFlagHelper(waitTimeoutFlag, listenCmd)

	listenCmd.Flags().String(metricsAddrFlag, "",
		"Address to serve prometheus metrics on, e.g. :9090")
	bindFlagHelper(metricsAddrFlag, listenCmd)

	rootCmd.AddCommand(listenCmd)
}
