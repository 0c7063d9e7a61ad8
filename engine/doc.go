// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package engine implements a partitioned map/join processing engine: it
// splits a file or byte stream into fixed-size partitions, dispatches the
// partitions to a bounded worker pool for parallel computation, and merges
// the per-partition results according to a join discipline.
//
// The engine itself is domain-agnostic. Concrete uses (line indexing,
// regex search, duplicate-file comparison) live in sibling packages and
// supply a Strategy implementing Map/Join/Finish.
package engine
