package rankgen_go

import (
	"gorgonia.org/tensor"
)

// Weight initialization policy as an explicit dispatch over the closed set
// of learnable layer kinds: deconvolution kernels are drawn from a
// zero-mean normal distribution, batch-normalization scales from a
// unit-mean normal distribution with shifts zeroed.
const initStdDev = 0.02

// InitDeconvKernel Returns a freshly drawn [outC, inC, k, k] kernel,
// N(0, 0.02).
func InitDeconvKernel(rt *Runtime, outChannels, inChannels, kernel int) *tensor.Dense {
	data := make([]float64, outChannels*inChannels*kernel*kernel)
	for i := range data {
		data[i] = rt.Gauss.Gaussian(0.0, initStdDev)
	}
	return tensor.New(tensor.WithShape(outChannels, inChannels, kernel, kernel), tensor.WithBacking(data))
}

// InitBatchNormScale Returns a freshly drawn (1, C, 1, 1) scale, N(1, 0.02).
func InitBatchNormScale(rt *Runtime, channels int) *tensor.Dense {
	data := make([]float64, channels)
	for i := range data {
		data[i] = rt.Gauss.Gaussian(1.0, initStdDev)
	}
	return tensor.New(tensor.WithShape(1, channels, 1, 1), tensor.WithBacking(data))
}

// InitBatchNormShift Returns a zeroed (1, C, 1, 1) shift.
func InitBatchNormShift(channels int) *tensor.Dense {
	return tensor.New(tensor.WithShape(1, channels, 1, 1), tensor.WithBacking(make([]float64, channels)))
}
