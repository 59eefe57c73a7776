// Copyright 2018 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the scan core's tunables from a TOML file, the way
// the teacher repo's scheduler config loads its own.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinykv-scan/kv/mvcc"
)

// Config holds the knobs a deployment may want to change without a rebuild.
// SeekBound is read here for operators to inspect but is not passed to the
// scanner: the scanner always uses its compile-time scanner.SeekBound.
type Config struct {
	SeekBound        int    `toml:"seek-bound"`
	DefaultFillCache bool   `toml:"default-fill-cache"`
	IsolationLevel   string `toml:"isolation-level"`
	LogLevel         string `toml:"log-level"`
}

// Default returns the configuration the scan core uses when no file is
// supplied.
func Default() *Config {
	return &Config{
		SeekBound:        8,
		DefaultFillCache: true,
		IsolationLevel:   "SI",
		LogLevel:         "info",
	}
}

// Load reads and parses a TOML config file, starting from Default() so an
// incomplete file still produces a usable Config.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Isolation translates the configured isolation level string into an
// mvcc.IsolationLevel, defaulting to SI for an unrecognized value.
func (c *Config) Isolation() mvcc.IsolationLevel {
	if c.IsolationLevel == "RC" {
		return mvcc.RC
	}
	return mvcc.SI
}
