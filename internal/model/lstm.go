// Package model implements the price-forecasting network and its on-disk
// artifact store. The network is a stacked LSTM regressor over scaled close
// windows, written in plain Go with JSON-serializable weights so trained
// models survive restarts without a native ML runtime.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrNotTrained is returned when inference is attempted on a network that has
// never been through a Fit.
var ErrNotTrained = errors.New("model not trained")

// Gate row order inside the stacked weight matrices: input, forget, cell,
// output. Each LSTM matrix holds 4*hidden rows in this order.
const numGates = 4

// lstmLayer holds the weights of one LSTM layer. Wx maps the input vector,
// Wh the previous hidden state; both stack the four gates row-wise.
type lstmLayer struct {
	InputSize  int         `json:"input_size"`
	HiddenSize int         `json:"hidden_size"`
	Wx         [][]float64 `json:"wx"` // (4*hidden) x input
	Wh         [][]float64 `json:"wh"` // (4*hidden) x hidden
	B          []float64   `json:"b"`  // 4*hidden
}

// denseLayer holds the weights of one fully connected layer.
type denseLayer struct {
	W [][]float64 `json:"w"` // out x in
	B []float64   `json:"b"` // out
}

// Network is the stacked LSTM regressor: two LSTM layers with dropout
// between them, a ReLU dense layer, and a linear scalar head. Inputs and
// outputs are in scaled [0, 1] close space.
type Network struct {
	WindowSize int        `json:"window_size"`
	Dropout    float64    `json:"dropout"`
	L1         lstmLayer  `json:"lstm1"`
	L2         lstmLayer  `json:"lstm2"`
	D1         denseLayer `json:"dense1"`
	D2         denseLayer `json:"dense2"`
	Trained    bool       `json:"trained"`
}

// Arch describes the network dimensions.
type Arch struct {
	WindowSize  int
	HiddenUnits int
	DenseUnits  int
	Dropout     float64
}

// NewNetwork creates an untrained network with Xavier-style small random
// weights from the given seed.
func NewNetwork(arch Arch, seed int64) *Network {
	rng := rand.New(rand.NewSource(seed))
	return &Network{
		WindowSize: arch.WindowSize,
		Dropout:    arch.Dropout,
		L1:         newLSTMLayer(1, arch.HiddenUnits, rng),
		L2:         newLSTMLayer(arch.HiddenUnits, arch.HiddenUnits, rng),
		D1:         newDenseLayer(arch.HiddenUnits, arch.DenseUnits, rng),
		D2:         newDenseLayer(arch.DenseUnits, 1, rng),
	}
}

func newLSTMLayer(inputSize, hiddenSize int, rng *rand.Rand) lstmLayer {
	rows := numGates * hiddenSize
	l := lstmLayer{
		InputSize:  inputSize,
		HiddenSize: hiddenSize,
		Wx:         randMatrix(rows, inputSize, rng),
		Wh:         randMatrix(rows, hiddenSize, rng),
		B:          make([]float64, rows),
	}
	// Forget gate bias starts at 1 so early training does not wipe the cell
	// state.
	for i := hiddenSize; i < 2*hiddenSize; i++ {
		l.B[i] = 1
	}
	return l
}

func newDenseLayer(inSize, outSize int, rng *rand.Rand) denseLayer {
	return denseLayer{
		W: randMatrix(outSize, inSize, rng),
		B: make([]float64, outSize),
	}
}

func randMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	scale := math.Sqrt(1.0 / float64(cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = (rng.Float64()*2 - 1) * scale
		}
	}
	return m
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// ---------------------------------------------------------------------------
// Forward pass
// ---------------------------------------------------------------------------

// lstmStep holds per-timestep activations cached for backpropagation.
type lstmStep struct {
	x     []float64
	hPrev []float64
	cPrev []float64
	i     []float64
	f     []float64
	g     []float64
	o     []float64
	c     []float64
	tanhC []float64
	h     []float64
}

// step runs one LSTM timestep and returns the cached activations.
func (l *lstmLayer) step(x, hPrev, cPrev []float64) lstmStep {
	h := l.HiddenSize
	z := make([]float64, numGates*h)
	for r := 0; r < numGates*h; r++ {
		sum := l.B[r]
		for j, xv := range x {
			sum += l.Wx[r][j] * xv
		}
		for j, hv := range hPrev {
			sum += l.Wh[r][j] * hv
		}
		z[r] = sum
	}

	s := lstmStep{
		x: x, hPrev: hPrev, cPrev: cPrev,
		i: make([]float64, h), f: make([]float64, h),
		g: make([]float64, h), o: make([]float64, h),
		c: make([]float64, h), tanhC: make([]float64, h), h: make([]float64, h),
	}
	for j := 0; j < h; j++ {
		s.i[j] = sigmoid(z[j])
		s.f[j] = sigmoid(z[h+j])
		s.g[j] = math.Tanh(z[2*h+j])
		s.o[j] = sigmoid(z[3*h+j])
		s.c[j] = s.f[j]*cPrev[j] + s.i[j]*s.g[j]
		s.tanhC[j] = math.Tanh(s.c[j])
		s.h[j] = s.o[j] * s.tanhC[j]
	}
	return s
}

// forwardSequence runs the layer over a full input sequence and returns the
// per-timestep caches. inputs[t] is the input vector at timestep t.
func (l *lstmLayer) forwardSequence(inputs [][]float64) []lstmStep {
	steps := make([]lstmStep, len(inputs))
	hPrev := make([]float64, l.HiddenSize)
	cPrev := make([]float64, l.HiddenSize)
	for t, x := range inputs {
		steps[t] = l.step(x, hPrev, cPrev)
		hPrev = steps[t].h
		cPrev = steps[t].c
	}
	return steps
}

func (d *denseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(d.W))
	for r := range d.W {
		sum := d.B[r]
		for j, xv := range x {
			sum += d.W[r][j] * xv
		}
		out[r] = sum
	}
	return out
}

// Predict runs a deterministic forward pass on one scaled window and returns
// the scaled next-close estimate. Dropout is inactive at inference.
func (n *Network) Predict(window []float64) (float64, error) {
	if !n.Trained {
		return 0, ErrNotTrained
	}
	if len(window) != n.WindowSize {
		return 0, fmt.Errorf("window length %d, model expects %d", len(window), n.WindowSize)
	}
	out, _ := n.forward(window, nil)
	return out, nil
}

// forwardCache holds every intermediate needed by the backward pass for a
// single sample.
type forwardCache struct {
	steps1 []lstmStep
	steps2 []lstmStep
	mask1  [][]float64 // dropout mask on L1 outputs, nil at inference
	mask2  []float64   // dropout mask on L2 final output
	h2in   [][]float64 // L2 inputs after dropout
	d1in   []float64   // D1 input after dropout
	d1pre  []float64   // D1 pre-activation
	d1out  []float64   // D1 post-ReLU
	out    float64
}

// forward runs the full network on one window. A non-nil rng enables
// inverted dropout (training mode) and the cache records the masks.
func (n *Network) forward(window []float64, rng *rand.Rand) (float64, *forwardCache) {
	inputs := make([][]float64, len(window))
	for t, v := range window {
		inputs[t] = []float64{v}
	}

	cache := &forwardCache{}
	cache.steps1 = n.L1.forwardSequence(inputs)

	// Dropout on layer-1 outputs, then feed the sequence to layer 2.
	cache.h2in = make([][]float64, len(cache.steps1))
	if rng != nil && n.Dropout > 0 {
		cache.mask1 = make([][]float64, len(cache.steps1))
	}
	for t, s := range cache.steps1 {
		h := make([]float64, len(s.h))
		copy(h, s.h)
		if cache.mask1 != nil {
			cache.mask1[t] = dropoutMask(len(h), n.Dropout, rng)
			for j := range h {
				h[j] *= cache.mask1[t][j]
			}
		}
		cache.h2in[t] = h
	}

	cache.steps2 = n.L2.forwardSequence(cache.h2in)
	last := cache.steps2[len(cache.steps2)-1].h

	d1in := make([]float64, len(last))
	copy(d1in, last)
	if rng != nil && n.Dropout > 0 {
		cache.mask2 = dropoutMask(len(d1in), n.Dropout, rng)
		for j := range d1in {
			d1in[j] *= cache.mask2[j]
		}
	}
	cache.d1in = d1in

	cache.d1pre = n.D1.forward(d1in)
	cache.d1out = make([]float64, len(cache.d1pre))
	for j, v := range cache.d1pre {
		if v > 0 {
			cache.d1out[j] = v
		}
	}

	cache.out = n.D2.forward(cache.d1out)[0]
	return cache.out, cache
}

// dropoutMask returns an inverted-dropout mask: kept units are scaled by
// 1/(1-rate) so inference needs no rescaling.
func dropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	mask := make([]float64, n)
	keep := 1 - rate
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}
