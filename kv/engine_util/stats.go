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

package engine_util

// CFStatistics counts logical reads against a single column family.
type CFStatistics struct {
	// Seek counts user-visible Seek calls.
	Seek int
	// Next counts Next calls.
	Next int
	// Processed counts write records whose value was parsed and inspected
	// (i.e. every write the version resolver actually looked at, not just
	// cursor positions it stepped over).
	Processed int
}

// Statistics is the per-scan tally across all three column families, handed
// to the caller by TakeStatistics and reset to zero afterwards.
type Statistics struct {
	Lock    CFStatistics
	Write   CFStatistics
	Default CFStatistics
}
