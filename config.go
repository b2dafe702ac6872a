package rankgen_go

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Supported dataset kinds. "imagenet", "folder" and "lfw" share the
// generic image-folder pipeline.
const (
	DatasetFolder   = "folder"
	DatasetImagenet = "imagenet"
	DatasetLFW      = "lfw"
	DatasetLSUN     = "lsun"
	DatasetCIFAR10  = "cifar10"
	DatasetMNIST    = "mnist"
	DatasetFake     = "fake"
)

// Config Immutable run configuration. Parsed once from invocation arguments
// and then passed by reference into every stage; never mutated after parse.
type Config struct {
	Dataset    string
	DataRoot   string
	Workers    int
	BatchSize  int
	ImageSize  int
	NGF        int
	Niter      int
	LR         float64
	Beta1      float64
	CUDA       bool
	DryRun     bool
	NGPU       int
	NetG       string
	OutDir     string
	ManualSeed int64
	Classes    string
}

// ParseConfig Parses provided arguments (usually os.Args[1:]) into Config.
// Defaults match the reference invocation surface.
func ParseConfig(args []string) (*Config, error) {
	cfg := &Config{}
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.StringVar(&cfg.Dataset, "dataset", "", "cifar10 | lsun | mnist | imagenet | folder | lfw | fake")
	fs.StringVar(&cfg.DataRoot, "dataroot", "", "path to dataset")
	fs.IntVar(&cfg.Workers, "workers", 2, "number of data loading workers")
	fs.IntVar(&cfg.BatchSize, "batchSize", 64, "input batch size")
	fs.IntVar(&cfg.ImageSize, "imageSize", 64, "the height / width of the input image to network")
	fs.IntVar(&cfg.NGF, "ngf", 64, "base feature width of the generator")
	fs.IntVar(&cfg.Niter, "niter", 25, "number of epochs to train for")
	fs.Float64Var(&cfg.LR, "lr", 0.0002, "learning rate")
	fs.Float64Var(&cfg.Beta1, "beta1", 0.5, "beta1 for adam")
	fs.BoolVar(&cfg.CUDA, "cuda", false, "enables cuda")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "check a single training cycle works")
	fs.IntVar(&cfg.NGPU, "ngpu", 1, "number of GPUs to use")
	fs.StringVar(&cfg.NetG, "netG", "", "path to netG checkpoint (to continue training)")
	fs.StringVar(&cfg.OutDir, "outf", ".", "folder to output images and model checkpoints")
	fs.Int64Var(&cfg.ManualSeed, "manualSeed", 0, "manual seed (0 means a fresh seed is drawn)")
	fs.StringVar(&cfg.Classes, "classes", "bedroom", "comma separated list of classes for the lsun data set")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, err
		}
		return nil, errors.Wrap(err, "Can't parse arguments")
	}
	return cfg, nil
}

// Validate Checks configuration consistency. It is a configuration error to
// omit the data path for any dataset kind except the synthetic one.
func (cfg *Config) Validate() error {
	switch strings.ToLower(cfg.Dataset) {
	case DatasetFolder, DatasetImagenet, DatasetLFW, DatasetLSUN, DatasetCIFAR10, DatasetMNIST, DatasetFake:
	case "":
		return fmt.Errorf("Parameter 'dataset' is required")
	default:
		return fmt.Errorf("Dataset kind '%s' is not recognized", cfg.Dataset)
	}
	if cfg.DataRoot == "" && strings.ToLower(cfg.Dataset) != DatasetFake {
		return fmt.Errorf("Parameter 'dataroot' is required for dataset \"%s\"", cfg.Dataset)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("Batch size must be positive, but got %d", cfg.BatchSize)
	}
	if cfg.NGF < 1 {
		return fmt.Errorf("Feature width must be positive, but got %d", cfg.NGF)
	}
	if cfg.Niter < 1 {
		return fmt.Errorf("Number of epochs must be positive, but got %d", cfg.Niter)
	}
	if err := checkImageSize(cfg.ImageSize); err != nil {
		return err
	}
	return nil
}

// checkImageSize The generator upsamples a 4x4 map by doubling stages, so
// the target resolution must be of form 4*2^m, m >= 1.
func checkImageSize(imageSize int) error {
	s := imageSize
	if s >= 8 {
		for s%2 == 0 {
			s /= 2
		}
	}
	if imageSize < 8 || s != 1 {
		return fmt.Errorf("Image size must be 4*2^m (8, 16, 32, 64, ...), but got %d", imageSize)
	}
	return nil
}

// EnsureOutDir Creates the output directory if it is absent. The
// "already exists" condition is not an error; other failures propagate.
func (cfg *Config) EnsureOutDir() error {
	if err := os.MkdirAll(cfg.OutDir, 0755); err != nil && !os.IsExist(err) {
		return errors.Wrap(err, "Can't create output directory")
	}
	return nil
}
