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

// Package log sets up the process-wide pingcap/log logger cmd/scan uses
// (the scan core itself does not log), the way scheduler/server/schedulers wires it up in the
// teacher repo.
package log

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Init configures the global pingcap/log logger at the given level
// ("debug", "info", "warn", "error"). Call it once, early in main.
func Init(level string) error {
	cfg := &log.Config{
		Level: level,
		File:  log.FileLogConfig{},
	}
	logger, props, err := log.InitLogger(cfg)
	if err != nil {
		return err
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// ScanStarted logs the parameters of a new scan at debug level.
func ScanStarted(ts uint64, isolation string, lower, upper []byte) {
	log.Debug("forward scan started",
		zap.Uint64("ts", ts),
		zap.String("isolation-level", isolation),
		zap.ByteString("lower", lower),
		zap.ByteString("upper", upper),
	)
}

// SeekFallback logs that the bounded next-then-seek strategy fell back to an
// explicit Seek for a column family, so operators can see how often the
// SeekBound budget is exhausted in practice.
func SeekFallback(cf string, userKey []byte) {
	log.Debug("scan fell back to seek",
		zap.String("cf", cf),
		zap.ByteString("user-key", userKey),
	)
}

// KeyLocked logs a recoverable lock conflict at warn level, mirroring how
// the teacher repo surfaces per-key errors it expects callers to retry.
func KeyLocked(err error) {
	log.Warn("key is locked, skipping", zap.Error(err))
}
