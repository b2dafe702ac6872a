package rankgen_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
)

// Latent vector geometry. The encoder reduces every image to a flat vector
// of LatentDim entries which the generator reshapes into a unit spatial map.
const (
	LatentEdge = 4
	LatentDim  = LatentEdge * LatentEdge
)

// GeneratorNet Abstraction for the upsampling generator. It's simple neural network actually.
//
// private - underlying sequence of layers
//
type GeneratorNet struct {
	private *Network
}

// Generator Constructor for GeneratorNet
func Generator(Layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{private: &Network{
		Name:   "generator",
		Layers: Layers,
	}}
}

// Out Returns reference to output node
func (net *GeneratorNet) Out() *gorgonia.Node {
	return net.private.out
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() gorgonia.Nodes {
	return net.private.Learnables()
}

// Fwd Initializates feedforward for provided input
//
// input - Input node
// batchSize - batch size. If it's >= 2 then broadcast function will be applied
//
func (net *GeneratorNet) Fwd(input *gorgonia.Node, batchSize int) error {
	if err := net.private.Fwd(input, batchSize); err != nil {
		return errors.Wrap(err, "[Generator]")
	}
	return nil
}

// DeepGenerator Builds the fixed upsampling stack mapping a flat latent
// vector of LatentDim entries to an (nc, imageSize, imageSize) image:
// reshape to a unit spatial map, a head deconvolution to a 4x4 map of
// ngf*2^(m-1) features, then m-1 doubling stages (deconvolution + batch
// normalization + ReLU) halving feature width each stage, and a final
// deconvolution to nc channels under tanh. For imageSize=64 this is the
// classic five-stage 8x/4x/2x/1x layout.
//
// Weight initialization policy is the explicit per-kind dispatch from
// weights.go; all randomness is drawn from the run context.
func DeepGenerator(g *gorgonia.ExprGraph, rt *Runtime, batchSize, imageSize, ngf, nc int) (*GeneratorNet, error) {
	if err := checkImageSize(imageSize); err != nil {
		return nil, err
	}
	if ngf < 1 {
		return nil, fmt.Errorf("Feature width must be positive, but got %d", ngf)
	}
	if nc != 1 && nc != 3 {
		return nil, fmt.Errorf("Channel count must be 1 or 3, but got %d", nc)
	}
	doublings := 0
	for s := 4; s < imageSize; s *= 2 {
		doublings++
	}

	layers := make([]*Layer, 0, 2*doublings+2)
	layers = append(layers, &Layer{
		Type:        LayerReshape,
		Activation:  NoActivation,
		ReshapeDims: []int{batchSize, LatentDim, 1, 1},
	})

	// Head: 1x1 -> 4x4 at the widest feature width.
	width := ngf << (doublings - 1)
	layers = append(layers,
		deconvLayer(g, rt, "generator_deconv_0", LatentDim, width, 4, 1, 0, NoActivation),
		batchNormLayer(g, rt, "generator_bn_0", width, Rectify),
	)
	// Doubling stages down to the base feature width.
	for i := 1; i < doublings; i++ {
		next := width / 2
		layers = append(layers,
			deconvLayer(g, rt, fmt.Sprintf("generator_deconv_%d", i), width, next, 4, 2, 1, NoActivation),
			batchNormLayer(g, rt, fmt.Sprintf("generator_bn_%d", i), next, Rectify),
		)
		width = next
	}
	// Output stage: base width -> channel count, bounded output.
	layers = append(layers, deconvLayer(g, rt, fmt.Sprintf("generator_deconv_%d", doublings), width, nc, 4, 2, 1, Tanh))

	return Generator(layers...), nil
}

// deconvLayer Transposed-convolution layer with kernel weights drawn from
// the zero-mean initialization policy.
func deconvLayer(g *gorgonia.ExprGraph, rt *Runtime, name string, inChannels, outChannels, kernel, stride, padding int, activation ActivationFunc) *Layer {
	w := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(outChannels, inChannels, kernel, kernel),
		gorgonia.WithName(name+"_w"),
		gorgonia.WithValue(InitDeconvKernel(rt, outChannels, inChannels, kernel)),
	)
	return &Layer{
		WeightNode:   w,
		Type:         LayerDeconvolutional,
		Activation:   activation,
		KernelHeight: kernel,
		KernelWidth:  kernel,
		Padding:      []int{padding, padding},
		Stride:       []int{stride, stride},
		Dilation:     []int{1, 1},
	}
}

// batchNormLayer Batch-normalization layer with unit-mean scale and zeroed
// shift, followed by the provided activation.
func batchNormLayer(g *gorgonia.ExprGraph, rt *Runtime, name string, channels int, activation ActivationFunc) *Layer {
	scale := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(1, channels, 1, 1),
		gorgonia.WithName(name+"_scale"),
		gorgonia.WithValue(InitBatchNormScale(rt, channels)),
	)
	shift := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(1, channels, 1, 1),
		gorgonia.WithName(name+"_shift"),
		gorgonia.WithValue(InitBatchNormShift(channels)),
	)
	return &Layer{
		WeightNode: scale,
		BiasNode:   shift,
		Type:       LayerBatchNorm,
		Activation: activation,
		Momentum:   0.1,
		Epsilon:    1e-5,
	}
}
