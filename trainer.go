package rankgen_go

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const logEveryBatches = 100

// Train Runs the whole optimization: builds the generator graph once for
// the configured batch shape, then walks (epoch, batch) until the epoch
// budget is spent. Per batch: rank-encode the real images into the latent
// vector, feed it forward, take L1 against the originals, backprop and do
// one Adam step over the generator learnables only. Every 100th batch the
// current loss is logged and both the real batch and a fixed-noise sample
// are dumped as PNG grids; every epoch ends with a parameter checkpoint.
//
// Any failure is terminal: there is no retry and no partial recovery.
func Train(cfg *Config, rt *Runtime, ds Dataset, loader *DataLoader) error {
	nc := ds.Channels()
	batchSize := cfg.BatchSize
	g := gorgonia.NewGraph()

	netG, err := DeepGenerator(g, rt, batchSize, cfg.ImageSize, cfg.NGF, nc)
	if err != nil {
		return errors.Wrap(err, "Can't define generator")
	}
	input := gorgonia.NewMatrix(g, gorgonia.Float64,
		gorgonia.WithShape(batchSize, LatentDim),
		gorgonia.WithName("generator_input"),
	)
	if err := netG.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "Can't initialize feedforward")
	}
	target := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(batchSize, nc, cfg.ImageSize, cfg.ImageSize),
		gorgonia.WithName("reconstruction_target"),
	)

	cost, err := L1Loss(netG.Out(), target)
	if err != nil {
		return errors.Wrap(err, "Can't prepare cost node")
	}
	gorgonia.WithName("reconstruction_loss")(cost)

	var costOut, fakeOut gorgonia.Value
	gorgonia.Read(cost, &costOut)
	gorgonia.Read(netG.Out(), &fakeOut)

	if _, err := gorgonia.Grad(cost, netG.Learnables()...); err != nil {
		return errors.Wrap(err, "Can't define gradients")
	}

	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(netG.Learnables()...))
	defer tm.Close()
	solver := gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(cfg.LR),
		gorgonia.WithBeta1(cfg.Beta1),
		gorgonia.WithBeta2(0.999),
		gorgonia.WithBatchSize(float64(batchSize)),
	)

	numParams := 0
	for _, n := range netG.Learnables() {
		numParams += n.Shape().TotalSize()
	}
	fmt.Printf("# of parameters in G: %d\n", numParams)

	if cfg.NetG != "" {
		if err := LoadCheckpoint(cfg.NetG, netG.Learnables()); err != nil {
			return errors.Wrap(err, "Can't resume generator from checkpoint")
		}
	}

	encoder, err := NewRankEncoder(rt, nc*cfg.ImageSize*cfg.ImageSize, LatentDim)
	if err != nil {
		return errors.Wrap(err, "Can't prepare rank encoder")
	}
	fixedNoise := NormRandDense(rt.Rand, batchSize, LatentDim)

	niter := cfg.Niter
	if cfg.DryRun {
		niter = 1
	}

	lossHistory := make([]float64, 0, niter)
	for epoch := 0; epoch < niter; epoch++ {
		ep := loader.Epoch()
		totalBatches := loader.Batches()
		epochLosses := make([]float64, 0, totalBatches)
		for i := 0; ; i++ {
			batch, ok, err := ep.Next()
			if err != nil {
				return errors.Wrap(err, fmt.Sprintf("Can't load batch #%d of epoch #%d", i, epoch))
			}
			if !ok {
				break
			}
			latent, err := encoder.Encode(batch.Images)
			if err != nil {
				return errors.Wrap(err, "Can't encode batch")
			}
			if err := gorgonia.Let(input, latent); err != nil {
				return errors.Wrap(err, "Can't init input value")
			}
			if err := gorgonia.Let(target, batch.Images); err != nil {
				return errors.Wrap(err, "Can't init target value")
			}
			if err := tm.RunAll(); err != nil {
				return errors.Wrap(err, "Can't run training step")
			}
			loss, ok := costOut.Data().(float64)
			if !ok {
				return errors.Errorf("Loss must be a scalar float64, but got %T", costOut.Data())
			}
			if err := solver.Step(gorgonia.NodesToValueGrads(netG.Learnables())); err != nil {
				return errors.Wrap(err, "Can't do optimizer step")
			}
			tm.Reset()
			epochLosses = append(epochLosses, loss)

			if i%logEveryBatches == 0 {
				fmt.Printf("[%d/%d][%d/%d] Loss_G: %.4f\n", epoch, niter, i, totalBatches, loss)
				if err := SaveImageGrid(batch.Images, filepath.Join(cfg.OutDir, "real_samples.png")); err != nil {
					return errors.Wrap(err, "Can't save real samples")
				}
				fake, err := sampleFixedNoise(tm, input, fixedNoise, fakeOut)
				if err != nil {
					return errors.Wrap(err, "Can't sample generator")
				}
				fakeName := fmt.Sprintf("fake_samples_epoch_%03d_%03d.png", epoch, i)
				if err := SaveImageGrid(fake, filepath.Join(cfg.OutDir, fakeName)); err != nil {
					return errors.Wrap(err, "Can't save fake samples")
				}
			}

			if cfg.DryRun {
				break
			}
		}
		checkpointName := filepath.Join(cfg.OutDir, fmt.Sprintf("netG_epoch_%d.gob", epoch))
		if err := SaveCheckpoint(checkpointName, netG.Learnables()); err != nil {
			return errors.Wrap(err, "Can't save checkpoint")
		}
		if len(epochLosses) > 0 {
			lossHistory = append(lossHistory, stat.Mean(epochLosses, nil))
		}
	}
	if err := PlotLossHistory(lossHistory, filepath.Join(cfg.OutDir, "loss_history.png")); err != nil {
		return errors.Wrap(err, "Can't plot loss history")
	}
	return nil
}

// sampleFixedNoise Runs one forward pass on the run's fixed noise vector and
// clones the generator's output. No solver step is taken: the pass exists
// only to visualize training progress on a stable input.
func sampleFixedNoise(tm gorgonia.VM, input *gorgonia.Node, fixedNoise *tensor.Dense, fakeOut gorgonia.Value) (*tensor.Dense, error) {
	if err := gorgonia.Let(input, fixedNoise); err != nil {
		return nil, errors.Wrap(err, "Can't init fixed noise value")
	}
	if err := tm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "Can't run forward pass")
	}
	tm.Reset()
	out, ok := fakeOut.(*tensor.Dense)
	if !ok {
		return nil, errors.Errorf("Generator output must be a dense tensor, but got %T", fakeOut)
	}
	return out.Clone().(*tensor.Dense), nil
}
