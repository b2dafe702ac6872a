package rankgen_go

import (
	"testing"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func zeroWeight(g *gorgonia.ExprGraph, name string, dims ...int) *gorgonia.Node {
	return gorgonia.NewTensor(g, gorgonia.Float64, len(dims),
		gorgonia.WithShape(dims...),
		gorgonia.WithName(name),
		gorgonia.WithValue(tensor.New(tensor.WithShape(dims...), tensor.Of(tensor.Float64))),
	)
}

func TestDeconvolutionalLayerShapes(t *testing.T) {
	cases := []struct {
		name     string
		in       tensor.Shape
		out      tensor.Shape
		channels int
		kernel   int
		stride   int
		padding  int
	}{
		// Head stage: unit map expands to 4x4.
		{name: "head", in: tensor.Shape{2, 16, 1, 1}, out: tensor.Shape{2, 32, 4, 4}, channels: 32, kernel: 4, stride: 1, padding: 0},
		// Doubling stage: (H-1)*2 - 2 + 4 = 2H.
		{name: "double_4", in: tensor.Shape{2, 8, 4, 4}, out: tensor.Shape{2, 4, 8, 8}, channels: 4, kernel: 4, stride: 2, padding: 1},
		{name: "double_16", in: tensor.Shape{1, 6, 16, 16}, out: tensor.Shape{1, 3, 32, 32}, channels: 3, kernel: 4, stride: 2, padding: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := gorgonia.NewGraph()
			input := gorgonia.NewTensor(g, gorgonia.Float64, 4,
				gorgonia.WithShape(tc.in...),
				gorgonia.WithName("deconv_test_input"),
			)
			l := &Layer{
				WeightNode:   zeroWeight(g, "deconv_test_w", tc.channels, tc.in[1], tc.kernel, tc.kernel),
				Type:         LayerDeconvolutional,
				Activation:   NoActivation,
				KernelHeight: tc.kernel,
				KernelWidth:  tc.kernel,
				Padding:      []int{tc.padding, tc.padding},
				Stride:       []int{tc.stride, tc.stride},
				Dilation:     []int{1, 1},
			}
			out, err := l.Fwd(tc.in[0], input)
			if err != nil {
				t.Fatal(err)
			}
			if !out.Shape().Eq(tc.out) {
				t.Errorf("Expected output shape %v, got %v", tc.out, out.Shape())
			}
		})
	}
}

func fixedDeconvLayer(t *testing.T, g *gorgonia.ExprGraph) (*Layer, *gorgonia.Node) {
	t.Helper()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(1, 1, 2, 2),
		gorgonia.WithName("deconv_value_input"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))),
	)
	w := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(1, 1, 2, 2),
		gorgonia.WithName("deconv_value_w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))),
	)
	return &Layer{
		WeightNode:   w,
		Type:         LayerDeconvolutional,
		Activation:   NoActivation,
		KernelHeight: 2,
		KernelWidth:  2,
		Padding:      []int{0, 0},
		Stride:       []int{2, 2},
		Dilation:     []int{1, 1},
	}, input
}

func TestDeconvolutionalLayerForwardValues(t *testing.T) {
	g := gorgonia.NewGraph()
	l, input := fixedDeconvLayer(t, g)
	out, err := l.Fwd(1, input)
	if err != nil {
		t.Fatal(err)
	}
	var outVal gorgonia.Value
	gorgonia.Read(out, &outVal)
	tm := gorgonia.NewTapeMachine(g)
	defer tm.Close()
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	// Kernel 2 with stride 2 tiles without overlap, so each input pixel v
	// expands to the 2x2 block v*{{4,3},{2,1}} (the kernel seen through the
	// stride-1 convolution over the zero-interleaved, asymmetrically padded
	// input).
	want := []float64{
		4, 3, 8, 6,
		2, 1, 4, 2,
		12, 9, 16, 12,
		6, 3, 8, 4,
	}
	got, ok := outVal.Data().([]float64)
	if !ok {
		t.Fatalf("Expected []float64 output, got %T", outVal.Data())
	}
	if !float64sEqual(got, want) {
		t.Errorf("Expected deconvolution output %v, got %v", want, got)
	}
}

func TestDeconvolutionalLayerGradients(t *testing.T) {
	g := gorgonia.NewGraph()
	l, input := fixedDeconvLayer(t, g)
	out, err := l.Fwd(1, input)
	if err != nil {
		t.Fatal(err)
	}
	cost, err := gorgonia.Sum(out)
	if err != nil {
		t.Fatal(err)
	}
	// The kernel must stay differentiable through the zero-interleave and
	// padding composition.
	if _, err := gorgonia.Grad(cost, l.WeightNode); err != nil {
		t.Fatal(err)
	}
	tm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(l.WeightNode))
	defer tm.Close()
	if err := tm.RunAll(); err != nil {
		t.Fatal(err)
	}
	grad, err := l.WeightNode.Grad()
	if err != nil {
		t.Fatal(err)
	}
	// d(sum)/dK: every kernel entry meets every input pixel exactly once,
	// so each entry's gradient is the input sum.
	want := []float64{10, 10, 10, 10}
	if got := grad.Data().([]float64); !float64sEqual(got, want) {
		t.Errorf("Expected kernel gradient %v, got %v", want, got)
	}
}

func TestDeconvolutionalLayerGeometryErrors(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(1, 2, 4, 4),
		gorgonia.WithName("deconv_test_input"),
	)
	l := &Layer{
		WeightNode:   zeroWeight(g, "deconv_test_w", 2, 2, 3, 3),
		Type:         LayerDeconvolutional,
		Activation:   NoActivation,
		KernelHeight: 3,
		KernelWidth:  3,
		Padding:      []int{2, 2},
		Stride:       []int{2, 2},
		Dilation:     []int{1, 1},
	}
	// k-1-p-(s-1) < 0 has no zero-interleave expression.
	if _, err := l.Fwd(1, input); err == nil {
		t.Error("Expected geometry error for kernel=3 stride=2 padding=2")
	}

	l.Stride = []int{2, 1}
	if _, err := l.Fwd(1, input); err == nil {
		t.Error("Expected error for non-square stride")
	}
}

func TestBatchNormLayerKeepsShape(t *testing.T) {
	g := gorgonia.NewGraph()
	rt := testRuntime(5)
	input := gorgonia.NewTensor(g, gorgonia.Float64, 4,
		gorgonia.WithShape(2, 6, 8, 8),
		gorgonia.WithName("bn_test_input"),
	)
	l := batchNormLayer(g, rt, "bn_test", 6, NoActivation)
	out, err := l.Fwd(2, input)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Shape().Eq(tensor.Shape{2, 6, 8, 8}) {
		t.Errorf("Batch normalization must keep the input shape, got %v", out.Shape())
	}
}

func TestUnhandledLayerType(t *testing.T) {
	g := gorgonia.NewGraph()
	input := gorgonia.NewMatrix(g, gorgonia.Float64,
		gorgonia.WithShape(1, 4),
		gorgonia.WithName("layer_test_input"),
	)
	l := &Layer{Type: LayerType(999), Activation: NoActivation}
	if _, err := l.Fwd(1, input); err == nil {
		t.Error("Expected error for unhandled layer type")
	}
}
