// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package bcqueue implements a lock-free, unbounded, multi-producer /
// multi-consumer broadcast queue.
//
// Every reader subscribed to a Queue observes every value pushed after its
// subscription, in a well-defined order, without any reader blocking a
// writer or another reader. The queue holds a single shared copy of each
// value; there is no per-reader duplication.
//
// The queue is a singly-linked list of fixed-capacity Block slabs. Writers
// append to the block at the tail, allocating and linking a fresh block
// when the current one fills. Readers walk the list from wherever they
// subscribed toward the tail, never blocking and never allocating. A block
// is freed as soon as it has no reader positioned on it and no block before
// it still references it through its next pointer; chain collapse is
// iterative so releasing a long run of trailing blocks at once cannot
// overflow the stack.
//
// Two producer protocols are available: a single-producer fast path
// (NewSPWriter) that requires the caller to guarantee there is never more
// than one live producer, and a multi-producer path (NewWriter) safe for
// any number of concurrent producers. The multi-producer path defaults to
// a bitmap publication protocol (each cell publishes by setting one bit in
// an atomic word once it is fully written); a legacy packed-counter
// protocol is also available via WithProducerMode for compatibility with
// the equivalence the two protocols are specified to have.
//
// Backpressure, slow-reader disconnection, bounded capacity, and
// persistence are not goals of this package: a queue with a lagging reader
// grows without bound until that reader catches up or is dropped.
package bcqueue
