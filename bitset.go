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

import (
	"math/bits"
	"sync/atomic"

	"github.com/arl/bcqueue/ints"
)

// publicationBitmap is the per-block bit-map used by the multi-producer
// bitmap protocol: bit i is set once cell i has been fully written and is
// safe for a reader to observe. Bits are set with a compare-and-swap loop
// (the effect of an atomic fetch-or), so a reader's atomic load of the same
// word happens-after the writer's non-atomic write of the cell it just
// published, the same
// discipline vm.Malloc/vm.Free use for their page bitmap.
type publicationBitmap struct {
	words []atomic.Uint64
}

func newPublicationBitmap(capacity int) publicationBitmap {
	n := ints.ChunkCount(uint(capacity), uint(64))
	return publicationBitmap{words: make([]atomic.Uint64, n)}
}

// publish marks cell idx as fully written. It retries the CAS only when
// another cell's publish races it for the same 64-bit word; it never
// contends with itself, since each index has exactly one writer.
func (bm *publicationBitmap) publish(idx int) {
	w := idx / 64
	mask := uint64(1) << uint(idx%64)
	addr := &bm.words[w]
	for {
		old := addr.Load()
		next := old | mask
		if next == old {
			return
		}
		if addr.CompareAndSwap(old, next) {
			return
		}
	}
}

// scanFrom returns the length of the contiguous run of set bits starting at
// bit 0 of the bitmap, resuming at word fromWord (every word before it is
// already known to be all ones). base is the length previously reported
// together with fromWord; word fromWord is recounted from its first bit, so
// a resumed scan agrees with a scan from scratch, and base is returned
// unchanged when fromWord is past the last word. It returns the new length
// and the index of the first word that is not entirely ones (the new scan
// cursor), matching the "stop at the first word with fewer than 64
// trailing ones" rule in the bitmap protocol.
func (bm *publicationBitmap) scanFrom(fromWord int, base int) (length int, cursor int) {
	length = base
	for w := fromWord; w < len(bm.words); w++ {
		word := bm.words[w].Load()
		if word == ^uint64(0) {
			length = (w + 1) * 64
			continue
		}
		length = w*64 + bits.TrailingZeros64(^word)
		return length, w
	}
	return length, len(bm.words)
}
