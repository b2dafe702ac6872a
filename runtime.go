package rankgen_go

import (
	"log"
	"math/rand"
	"time"

	rng "github.com/leesper/go_rng"
)

// Runtime Explicit run context replacing process-wide side effects: a single
// seed feeding every random source, plus device placement flags. Initialized
// once at startup; read-only thereafter.
type Runtime struct {
	Seed    int64
	Rand    *rand.Rand
	Gauss   *rng.GaussianGenerator
	Uniform *rng.UniformGenerator

	CUDA bool
	NGPU int
	// TuneConvBackend mirrors the convolution autotuner switch of GPU
	// backends. The CPU tape machine has no such knob, so the flag is
	// recorded and logged only.
	TuneConvBackend bool
}

// NewRuntime Builds run context from configuration. When no manual seed is
// supplied a fresh one is drawn from [1;10000] and reported, so any run can
// be replayed exactly.
func NewRuntime(cfg *Config) *Runtime {
	seed := cfg.ManualSeed
	if seed == 0 {
		seed = rand.New(rand.NewSource(time.Now().UnixNano())).Int63n(10000) + 1
	}
	log.Printf("Random Seed: %d", seed)
	if cfg.CUDA {
		log.Printf("WARNING: --cuda requested, but this build drives the CPU tape machine")
	}
	return &Runtime{
		Seed:            seed,
		Rand:            rand.New(rand.NewSource(seed)),
		Gauss:           rng.NewGaussianGenerator(seed),
		Uniform:         rng.NewUniformGenerator(seed + 1),
		CUDA:            cfg.CUDA,
		NGPU:            cfg.NGPU,
		TuneConvBackend: true,
	}
}
