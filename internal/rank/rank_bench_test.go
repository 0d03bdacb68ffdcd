package rank

import (
	"fmt"
	"testing"
)

// ringWithHubs links every node to its successor and to one of a few hubs.
func ringWithHubs(n int) [][]int {
	out := make([][]int, n)
	for i := range n {
		out[i] = []int{(i + 1) % n, i % 7}
	}
	return out
}

func BenchmarkCompute(b *testing.B) {
	for _, n := range []int{50, 1000, 10000} {
		out := ringWithHubs(n)
		b.Run(fmt.Sprintf("nodes_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				_ = Compute(n, out, DefaultOptions())
			}
		})
	}
}
