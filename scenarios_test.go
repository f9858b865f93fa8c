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
	"runtime"
	"testing"

	"github.com/arl/bcqueue/heap"
	"golang.org/x/sync/errgroup"
)

func TestScenarioSingleWriterSingleReaderWithinOneBlock(t *testing.T) {
	q := NewQueue[int](WithBlockSize(4), WithProducerMode(ProducerSingle))
	w := q.NewSPWriter()
	r := q.NewReader()

	w.Push(10)
	w.Push(20)
	w.Push(30)
	if got := drain(r); !equalInts(got, []int{10, 20, 30}) {
		t.Fatalf("got %v, want [10 20 30]", got)
	}
	if _, ok := r.Next(); ok {
		t.Fatal("reader returned a value before it was pushed")
	}

	w.Push(40)
	if got := drain(r); !equalInts(got, []int{40}) {
		t.Fatalf("got %v, want [40]", got)
	}
	if _, ok := r.Next(); ok {
		t.Fatal("reader returned a value before it was pushed")
	}
	w.Close()
	r.Close()
}

func TestScenarioBlockCrossing(t *testing.T) {
	freed := 0
	q := NewQueue[int](WithBlockSize(4), WithProducerMode(ProducerSingle),
		WithOnBlockFree(func() { freed++ }))
	w := q.NewSPWriter()
	r := q.NewReader()

	for _, v := range []int{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	got := drain(r)
	if !equalInts(got, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("got %v, want [1 2 3 4 5]", got)
	}
	// Draining past the first (full) block already made the reader release
	// it and opportunistically advance the queue's head past it, which was
	// the block's last other referrer (the writer had moved on to the
	// second block after pushing value 4).
	if freed != 1 {
		t.Fatalf("freed = %d, want 1 (the first block, released while draining)", freed)
	}

	w.Close()
	r.Close()
	if freed != 1 {
		t.Fatalf("freed = %d, want 1 (the current/tail block outlives its writer and reader)", freed)
	}
}

func TestScenarioBroadcast(t *testing.T) {
	q := NewQueue[int](WithBlockSize(4))
	w := q.NewWriter()
	r1 := q.NewReader()
	r2 := q.NewReader()

	w.Push('A')
	w.Push('B')
	w.Push('C')

	got1 := drain(r1)
	got2 := drain(r2)
	if !equalInts(got1, []int{'A', 'B', 'C'}) {
		t.Fatalf("reader 1 got %v", got1)
	}
	if !equalInts(got2, []int{'A', 'B', 'C'}) {
		t.Fatalf("reader 2 got %v", got2)
	}

	r1.Close() // dropping reader 1 must not affect reader 2

	w.Push('D')
	got2 = drain(r2)
	if !equalInts(got2, []int{'D'}) {
		t.Fatalf("reader 2 got %v after reader 1 dropped, want [D]", got2)
	}
	w.Close()
	r2.Close()
}

func TestScenarioLateSubscription(t *testing.T) {
	q := NewQueue[int](WithBlockSize(4))
	w := q.NewWriter()
	w.Push(1)
	w.Push(2)
	w.Push(3)

	r := q.NewReader()
	w.Push(4)
	w.Push(5)

	got := drain(r)
	if !equalInts(got, []int{4, 5}) {
		t.Fatalf("got %v, want [4 5]", got)
	}
	w.Close()
	r.Close()
}

func TestScenarioMultiProducerCorrectness(t *testing.T) {
	const perWriter = 100
	const numWriters = 4
	const total = perWriter * numWriters

	q := NewQueue[int](WithBlockSize(4))
	readers := make([]*Reader[int], 4)
	for i := range readers {
		readers[i] = q.NewReader()
	}

	var g errgroup.Group
	for wi := 0; wi < numWriters; wi++ {
		base := wi * perWriter
		g.Go(func() error {
			w := q.NewWriter()
			for v := base; v < base+perWriter; v++ {
				w.Push(v)
			}
			w.Close()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for _, r := range readers {
		got := collectExactly(t, r, total)
		checkNoLossNoDuplication(t, got, total)
		checkPerWriterOrder(t, got, numWriters, perWriter)
		r.Close()
	}
}

func TestScenarioCapacityRace(t *testing.T) {
	const perWriter = 1000
	const numWriters = 8
	const total = perWriter * numWriters

	q := NewQueue[int](WithBlockSize(64))
	r1 := q.NewReader()
	r2 := q.NewReader()

	var g errgroup.Group
	for wi := 0; wi < numWriters; wi++ {
		base := wi * perWriter
		g.Go(func() error {
			w := q.NewWriter()
			for v := base; v < base+perWriter; v++ {
				w.Push(v)
			}
			w.Close()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	for _, r := range []*Reader[int]{r1, r2} {
		got := collectExactly(t, r, total)
		checkNoLossNoDuplication(t, got, total)
		checkPerWriterOrder(t, got, numWriters, perWriter)
		r.Close()
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// collectExactly spins on Next() (pushing has already finished in every
// caller of this helper) until exactly n values have been observed.
func collectExactly(t *testing.T, r *Reader[int], n int) []int {
	t.Helper()
	out := make([]int, 0, n)
	for len(out) < n {
		v, ok := r.Next()
		if !ok {
			runtime.Gosched()
			continue
		}
		out = append(out, *v)
	}
	return out
}

// checkNoLossNoDuplication verifies, via a min-heap sort, that got is a
// permutation of [0, n).
func checkNoLossNoDuplication(t *testing.T, got []int, n int) {
	t.Helper()
	if len(got) != n {
		t.Fatalf("got %d values, want %d", len(got), n)
	}
	less := func(a, b int) bool { return a < b }
	h := make([]int, 0, len(got))
	for _, v := range got {
		heap.PushSlice(&h, v, less)
	}
	for i := 0; i < n; i++ {
		v := heap.PopSlice(&h, less)
		if v != i {
			t.Fatalf("sorted output disagrees with [0,%d) at position %d: got %d", n, i, v)
		}
	}
}

// checkPerWriterOrder verifies that within the subsequence contributed by
// each writer's disjoint value range, values appear in ascending (push)
// order.
func checkPerWriterOrder(t *testing.T, got []int, numWriters, perWriter int) {
	t.Helper()
	last := make([]int, numWriters)
	for i := range last {
		last[i] = -1
	}
	for _, v := range got {
		wi := v / perWriter
		if v <= last[wi] {
			t.Fatalf("writer %d's subsequence out of order: %d after %d", wi, v, last[wi])
		}
		last[wi] = v
	}
}
