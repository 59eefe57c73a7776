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

// Command scan runs a forward MVCC scan over a badger-backed engine (or, for
// quick experiments, an in-memory one) and prints the visible key/value
// pairs at a given timestamp, along with the cursor statistics it cost.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/coocood/badger"
	"github.com/pingcap/errors"

	"github.com/pingcap-incubator/tinykv-scan/kv/config"
	tklog "github.com/pingcap-incubator/tinykv-scan/kv/log"
	"github.com/pingcap-incubator/tinykv-scan/kv/storage"
	"github.com/pingcap-incubator/tinykv-scan/kv/txn/scanner"
	"github.com/pingcap-incubator/tinykv-scan/kv/txnerr"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (optional)")
		dbPath     = flag.String("db", "", "path to a badger data directory; omitted for an empty in-memory demo")
		ts         = flag.Uint64("ts", 0, "snapshot timestamp to read at")
		lower      = flag.String("lower", "", "inclusive lower bound of the scan range")
		upper      = flag.String("upper", "", "exclusive upper bound of the scan range")
	)
	flag.Parse()

	if err := run(*configPath, *dbPath, *ts, *lower, *upper); err != nil {
		fmt.Fprintln(os.Stderr, "scan failed:", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath string, ts uint64, lower, upper string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return errors.Trace(err)
		}
		cfg = loaded
	}
	if err := tklog.Init(cfg.LogLevel); err != nil {
		return errors.Trace(err)
	}

	snap, closeSnap, err := openSnapshot(dbPath)
	if err != nil {
		return errors.Trace(err)
	}
	defer closeSnap()

	builder := scanner.NewBuilder(snap, ts).
		FillCache(cfg.DefaultFillCache).
		IsolationLevel(cfg.Isolation())
	if lower != "" || upper != "" {
		var lowerBytes, upperBytes []byte
		if lower != "" {
			lowerBytes = []byte(lower)
		}
		if upper != "" {
			upperBytes = []byte(upper)
		}
		builder = builder.Range(lowerBytes, upperBytes)
	}

	s, err := builder.Build()
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()

	tklog.ScanStarted(ts, cfg.IsolationLevel, []byte(lower), []byte(upper))

	count := 0
	for {
		kv, err := s.ReadNext()
		if err != nil {
			if _, ok := err.(*txnerr.ErrKeyIsLocked); ok {
				tklog.KeyLocked(err)
				continue
			}
			return errors.Trace(err)
		}
		if kv == nil {
			break
		}
		fmt.Printf("%s = %s\n", kv.UserKey, kv.Value)
		count++
	}

	stats := s.TakeStatistics()
	fmt.Printf("\n%d keys, lock{seek:%d next:%d} write{seek:%d next:%d processed:%d} default{seek:%d next:%d}\n",
		count,
		stats.Lock.Seek, stats.Lock.Next,
		stats.Write.Seek, stats.Write.Next, stats.Write.Processed,
		stats.Default.Seek, stats.Default.Next,
	)
	return nil
}

func openSnapshot(dbPath string) (storage.Snapshot, func(), error) {
	if dbPath == "" {
		snap := storage.NewMemSnapshot()
		return snap, func() {}, nil
	}

	opts := badger.DefaultOptions
	opts.Dir = dbPath
	opts.ValueDir = dbPath
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	txn := db.NewTransaction(false)
	snap := storage.NewBadgerSnapshot(txn)
	return snap, func() {
		snap.Close()
		db.Close()
	}, nil
}
