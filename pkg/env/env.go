// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

// Package env reports which deployment environment the binary runs in,
// from ZAPBLOB_ENV or the viper "env" key.
package env

import (
	"os"
	"sync"

	"github.com/spf13/viper"
)

const (
	Local      = "local"
	Production = "production"
	Testing    = "testing"
)

var (
	Env string

	once sync.Once
)

func IsLocal() bool {
	return Env == Local
}

func IsProduction() bool {
	return Env == Production
}

func IsTesting() bool {
	return Env == Testing
}

func init() {
	once.Do(func() {
		Env = os.Getenv("ZAPBLOB_ENV")
		if Env == "" {
			Env = viper.GetString("env")
		}
		if Env == "" {
			Env = Local
		}
	})
}
