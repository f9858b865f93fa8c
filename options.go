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

package bcqueue

// DefaultBlockSize is the number of message cells per block used when no
// WithBlockSize option is given.
const DefaultBlockSize = 4096

// ProducerMode selects which writer (and matching reader) protocol a Queue
// uses. It corresponds to the producer_mode/consumer_mode construction
// options: the reader side is not independently selectable because a
// bitmap-protocol queue never maintains a usable block length and a
// single/legacy queue never populates a publication bitmap.
type ProducerMode int

const (
	// ProducerMultiBitmap is the mandated multi-producer protocol: cells
	// publish by setting a bit in an atomic word once fully written, and
	// readers derive the published length from the longest run of set
	// bits starting at zero. This is the default.
	ProducerMultiBitmap ProducerMode = iota
	// ProducerMultiLegacy is the packed (occupied_len, active_writers)
	// alternative protocol recorded as equivalent to the bitmap protocol.
	ProducerMultiLegacy
	// ProducerSingle designates a queue driven by exactly one producer
	// using NewSPWriter. The caller is responsible for never creating a
	// second live SP writer; the queue additionally asserts this at
	// construction time (see Queue.NewSPWriter).
	ProducerSingle
)

type config struct {
	blockSize    int
	producerMode ProducerMode
	onBlockFree  func()
}

func defaultConfig() config {
	return config{
		blockSize:    DefaultBlockSize,
		producerMode: ProducerMultiBitmap,
	}
}

// Option configures a Queue at construction time.
type Option func(*config)

// WithBlockSize sets the number of message cells per block. The bitmap
// protocol packs publication bits into 64-bit words regardless of block
// size (ints.ChunkCount rounds the word count up; any unused high bits in
// the last word simply never get set), so n need not be a multiple of 64.
// WithBlockSize panics if n is not positive.
func WithBlockSize(n int) Option {
	if n <= 0 {
		panic("bcqueue: block size must be positive")
	}
	return func(c *config) { c.blockSize = n }
}

// WithProducerMode selects the writer/reader protocol pair for the queue.
func WithProducerMode(m ProducerMode) Option {
	return func(c *config) { c.producerMode = m }
}

// WithOnBlockFree installs a hook invoked exactly once, synchronously,
// whenever a block's reference count drops to zero and it is unlinked from
// the chain. It exists purely for test observability (confirming that a
// block is actually released once every reader has advanced past it); it
// has no effect on queue semantics and must not block or panic.
func WithOnBlockFree(fn func()) Option {
	return func(c *config) { c.onBlockFree = fn }
}
