package rankgen_go

import (
	"math/rand"

	rng "github.com/leesper/go_rng"
)

func testRuntime(seed int64) *Runtime {
	return &Runtime{
		Seed:    seed,
		Rand:    rand.New(rand.NewSource(seed)),
		Gauss:   rng.NewGaussianGenerator(seed),
		Uniform: rng.NewUniformGenerator(seed + 1),
	}
}

func float64sEqual(a, b []float64) bool {
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
