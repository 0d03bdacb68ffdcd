// Package rank computes link-authority scores by power iteration over the
// crawled link graph. Scores always sum to 1: random restarts add (1-d)/N
// per node and pages without outlinks spread their mass over every node.
package rank

import "math"

const (
	DefaultDamping       = 0.85
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100
)

type Options struct {
	Damping       float64
	Tolerance     float64
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{
		Damping:       DefaultDamping,
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
	}
}

// Result holds the score of every node and how the iteration ended.
// Delta is the L1 change of the last iteration; Converged is false when the
// iteration cap stopped the loop first.
type Result struct {
	Scores     []float64
	Iterations int
	Delta      float64
	Converged  bool
}

// Compute runs the iteration over nodes 0..n-1. out[i] lists the targets of
// node i; targets outside [0,n) and repeated targets are ignored.
func Compute(n int, out [][]int, opts Options) Result {
	if n <= 0 {
		return Result{Scores: []float64{}, Converged: true}
	}
	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = DefaultDamping
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	adj := normalize(n, out)
	d := opts.Damping
	nf := float64(n)

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / nf
	}
	next := make([]float64, n)

	res := Result{}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		dangling := 0.0
		for i, targets := range adj {
			if len(targets) == 0 {
				dangling += scores[i]
			}
		}
		base := (1-d)/nf + d*dangling/nf
		for i := range next {
			next[i] = base
		}
		for i, targets := range adj {
			if len(targets) == 0 {
				continue
			}
			share := d * scores[i] / float64(len(targets))
			for _, t := range targets {
				next[t] += share
			}
		}

		delta := 0.0
		for i := range scores {
			delta += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores
		res.Iterations = iter
		res.Delta = delta
		if delta < opts.Tolerance {
			res.Converged = true
			break
		}
	}
	res.Scores = scores
	return res
}

// normalize drops out-of-range and duplicate targets. Self links are kept.
func normalize(n int, out [][]int) [][]int {
	adj := make([][]int, n)
	for i := 0; i < n && i < len(out); i++ {
		seen := make(map[int]struct{}, len(out[i]))
		for _, t := range out[i] {
			if t < 0 || t >= n {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			adj[i] = append(adj[i], t)
		}
	}
	return adj
}
