// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

// Package cmd provides the zapblob CLI.
package cmd

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/LeeDigitalWorks/zapblob/pkg/blobclient"
	"github.com/LeeDigitalWorks/zapblob/pkg/debug"
	"github.com/LeeDigitalWorks/zapblob/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "zapblob",
	Short: "ZapBlob - object storage client",
	Long: `zapblob is a client for the ZapBlob object-storage service with support
for customer-supplied (CSEK) and customer-managed (KMS) encryption keys,
generation-match preconditions, and resumable server-side rewrites.`,
	PersistentPreRun: startDebugServer,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	viper.SetEnvPrefix("ZAPBLOB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.PersistentFlags().String("endpoint", "", "Service endpoint URL (or set ZAPBLOB_ENDPOINT)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "Per-request timeout")
	rootCmd.PersistentFlags().Float64("rate-limit", 0, "Client-side request rate limit (req/s, 0 = unlimited)")
	rootCmd.PersistentFlags().String("debug_addr", "", "Serve pprof and metrics on this address (e.g. :6060)")
}

// startDebugServer serves the debug mux when --debug_addr is set.
func startDebugServer(cmd *cobra.Command, args []string) {
	addr := NewFlagLoader(cmd).String("debug_addr")
	if addr == "" {
		return
	}
	go func() {
		if err := http.ListenAndServe(addr, debug.GetMux()); err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("debug server stopped")
		}
	}()
}

// newClient builds a blobclient from flags, env, and config file.
func newClient(cmd *cobra.Command) (*blobclient.Client, error) {
	fl := NewFlagLoader(cmd)

	return blobclient.New(blobclient.Config{
		Endpoint:  fl.String("endpoint"),
		Timeout:   fl.Duration("timeout"),
		RateLimit: fl.Float64("rate-limit"),
		UserAgent: "zapblob-cli/" + Version,
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
