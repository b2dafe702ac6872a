package rankgen_go

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Layer Just a Weight+Bias+ActivationFunction combo tagged by LayerType.
// For LayerBatchNorm the WeightNode holds the learned per-channel scale and
// the BiasNode the learned shift, both of shape (1, C, 1, 1).
type Layer struct {
	WeightNode *gorgonia.Node
	BiasNode   *gorgonia.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Padding      []int
	Stride       []int
	Dilation     []int
	ReshapeDims  []int

	Momentum float64
	Epsilon  float64
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerFlatten
	LayerReshape
	LayerDeconvolutional
	LayerBatchNorm
)

var (
	allowedNoWeights = []LayerType{LayerFlatten, LayerReshape}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Initializates feedforward of a single layer for provided input
//
// batchSize - batch size. If it's >= 2 then broadcast function will be applied for bias
// input - activated output of previous layer (or network input)
//
func (l *Layer) Fwd(batchSize int, input *gorgonia.Node) (*gorgonia.Node, error) {
	switch l.Type {
	case LayerLinear:
		tOp, err := gorgonia.Transpose(l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't transpose weights")
		}
		nonActivated, err := gorgonia.Mul(input, tOp)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
		if l.BiasNode == nil {
			return nonActivated, nil
		}
		if batchSize < 2 {
			nonActivated, err = gorgonia.Add(nonActivated, l.BiasNode)
			if err != nil {
				return nil, errors.Wrap(err, "Can't add bias to non-activated output")
			}
			return nonActivated, nil
		}
		nonActivated, err = gorgonia.BroadcastAdd(nonActivated, l.BiasNode, nil, []byte{0})
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't add [in broadcast term with batch_size = %d] bias to non-activated output", batchSize))
		}
		return nonActivated, nil
	case LayerFlatten:
		flatten, err := gorgonia.Reshape(input, tensor.Shape{batchSize, input.Shape().TotalSize() / batchSize})
		if err != nil {
			return nil, errors.Wrap(err, "Can't flatten input")
		}
		return flatten, nil
	case LayerReshape:
		reshaped, err := gorgonia.Reshape(input, l.ReshapeDims)
		if err != nil {
			return nil, errors.Wrap(err, "Can't reshape input")
		}
		return reshaped, nil
	case LayerDeconvolutional:
		deconv, err := deconv2d(input, l.WeightNode, l.KernelHeight, l.KernelWidth, l.Padding, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't deconvolve[2D] input by kernel")
		}
		return deconv, nil
	case LayerBatchNorm:
		normalized, _, _, _, err := gorgonia.BatchNorm(input, l.WeightNode, l.BiasNode, l.Momentum, l.Epsilon)
		if err != nil {
			return nil, errors.Wrap(err, "Can't batch-normalize input")
		}
		return normalized, nil
	default:
		return nil, fmt.Errorf("Layer type '%d' (uint16) is not handled", l.Type)
	}
}

// deconv2d Exact transposed convolution (stride s, padding p, kernel k, no
// bias) expressed through prebuilt graph operations: zero-interleave the
// input down to a fractional-stride grid, apply the asymmetric zero padding
// (k-1-p) before / (k-1-p-(s-1)) after, then run a stride-1 convolution.
// Output spatial size is the usual (H-1)*s - 2*p + k.
//
// Weight layout is [outChannels, inChannels, k, k], same as Conv2d, so the
// kernel is learned directly in the convolution's frame.
func deconv2d(input, kernel *gorgonia.Node, kernelHeight, kernelWidth int, padding, stride []int) (*gorgonia.Node, error) {
	if len(stride) != 2 || stride[0] != stride[1] {
		return nil, fmt.Errorf("Deconvolution supports square strides only, but got %v", stride)
	}
	if len(padding) != 2 || padding[0] != padding[1] {
		return nil, fmt.Errorf("Deconvolution supports square paddings only, but got %v", padding)
	}
	if kernelHeight != kernelWidth {
		return nil, fmt.Errorf("Deconvolution supports square kernels only, but got %dx%d", kernelHeight, kernelWidth)
	}
	k, s, p := kernelHeight, stride[0], padding[0]
	padBefore := k - 1 - p
	padAfter := padBefore - (s - 1)
	if padBefore < 0 || padAfter < 0 {
		return nil, fmt.Errorf("Unsupported deconvolution geometry: kernel=%d stride=%d padding=%d", k, s, p)
	}
	var err error
	if s > 1 {
		if input, err = zeroInterleave2d(input, s); err != nil {
			return nil, errors.Wrap(err, "Can't zero-interleave input")
		}
	}
	if padBefore > 0 || padAfter > 0 {
		if input, err = zeroPad2d(input, padBefore, padAfter); err != nil {
			return nil, errors.Wrap(err, "Can't zero-pad input")
		}
	}
	out, err := gorgonia.Conv2d(input, kernel, tensor.Shape{k, k}, []int{0, 0}, []int{1, 1}, []int{1, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't convolve[2D] dilated input by kernel")
	}
	return out, nil
}

// zeroInterleave2d Inserts (s-1) zeros after every element along both
// spatial axes of a (B, C, H, W) node, producing (B, C, H*s, W*s).
func zeroInterleave2d(input *gorgonia.Node, s int) (*gorgonia.Node, error) {
	interleaved, err := zeroInterleaveCols(input, s)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interleave columns")
	}
	// Rows are interleaved by flipping the spatial axes and repeating the
	// column pass.
	transposed, err := gorgonia.Transpose(interleaved, 0, 1, 3, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose spatial axes")
	}
	interleaved, err = zeroInterleaveCols(transposed, s)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interleave rows")
	}
	restored, err := gorgonia.Transpose(interleaved, 0, 1, 3, 2)
	if err != nil {
		return nil, errors.Wrap(err, "Can't transpose spatial axes back")
	}
	return restored, nil
}

// zeroInterleaveCols Inserts (s-1) zero columns after every column of a
// (B, C, H, W) node, producing (B, C, H, W*s).
func zeroInterleaveCols(input *gorgonia.Node, s int) (*gorgonia.Node, error) {
	inShape := input.Shape()
	b, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	asColumn, err := gorgonia.Reshape(input, tensor.Shape{b, c, h * w, 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape input to column form")
	}
	zeros := zeroConstant(b, c, h*w, s-1)
	stacked, err := gorgonia.Concat(3, asColumn, zeros)
	if err != nil {
		return nil, errors.Wrap(err, "Can't concatenate zeros")
	}
	interleaved, err := gorgonia.Reshape(stacked, tensor.Shape{b, c, h, w * s})
	if err != nil {
		return nil, errors.Wrap(err, "Can't reshape stacked columns back")
	}
	return interleaved, nil
}

// zeroPad2d Pads both spatial axes of a (B, C, H, W) node with zero borders:
// 'before' rows/columns on the top/left side and 'after' on the bottom/right.
// Each Concat gets its own argument slice: Concat keeps the slice as the
// node's children, so it must never be reused.
func zeroPad2d(input *gorgonia.Node, before, after int) (*gorgonia.Node, error) {
	var err error
	inShape := input.Shape()
	b, c, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cols := make([]*gorgonia.Node, 0, 3)
	if before > 0 {
		cols = append(cols, zeroConstant(b, c, h, before))
	}
	cols = append(cols, input)
	if after > 0 {
		cols = append(cols, zeroConstant(b, c, h, after))
	}
	if len(cols) > 1 {
		if input, err = gorgonia.Concat(3, cols...); err != nil {
			return nil, errors.Wrap(err, "Can't concatenate zero columns")
		}
	}
	w = w + before + after
	rows := make([]*gorgonia.Node, 0, 3)
	if before > 0 {
		rows = append(rows, zeroConstant(b, c, before, w))
	}
	rows = append(rows, input)
	if after > 0 {
		rows = append(rows, zeroConstant(b, c, after, w))
	}
	if len(rows) > 1 {
		if input, err = gorgonia.Concat(2, rows...); err != nil {
			return nil, errors.Wrap(err, "Can't concatenate zero rows")
		}
	}
	return input, nil
}

var zeroConstantSeq uint64

// zeroConstant A fresh all-zero constant node. Every call names the node
// uniquely: unnamed constants hash to the same graph node, which would hand
// a zeros tensor of the wrong shape to a later Concat.
func zeroConstant(dims ...int) *gorgonia.Node {
	seq := atomic.AddUint64(&zeroConstantSeq, 1)
	return gorgonia.NewConstant(
		tensor.New(tensor.WithShape(dims...), tensor.Of(tensor.Float64)),
		gorgonia.WithName(fmt.Sprintf("deconv_zeros_%d", seq)),
	)
}
