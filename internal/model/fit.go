package model

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"math/rand"

	"stocksense/internal/features"
)

// FitOptions holds the training hyperparameters.
type FitOptions struct {
	Epochs       int
	BatchSize    int
	Patience     int
	LearningRate float64
	Seed         int64
}

// FitReport summarizes a completed training run.
type FitReport struct {
	Epochs       int     `json:"epochs"`
	BestValLoss  float64 `json:"best_val_loss"`
	FinalLoss    float64 `json:"final_loss"`
	EarlyStopped bool    `json:"early_stopped"`
}

// gradients mirrors the network's parameter shapes.
type gradients struct {
	l1Wx, l1Wh [][]float64
	l1B        []float64
	l2Wx, l2Wh [][]float64
	l2B        []float64
	d1W        [][]float64
	d1B        []float64
	d2W        [][]float64
	d2B        []float64
}

func newGradients(n *Network) *gradients {
	return &gradients{
		l1Wx: zerosLike(n.L1.Wx), l1Wh: zerosLike(n.L1.Wh), l1B: make([]float64, len(n.L1.B)),
		l2Wx: zerosLike(n.L2.Wx), l2Wh: zerosLike(n.L2.Wh), l2B: make([]float64, len(n.L2.B)),
		d1W: zerosLike(n.D1.W), d1B: make([]float64, len(n.D1.B)),
		d2W: zerosLike(n.D2.W), d2B: make([]float64, len(n.D2.B)),
	}
}

func zerosLike(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = make([]float64, len(m[i]))
	}
	return out
}

// visit walks the network parameters and the matching gradient slices in a
// fixed order, row by row. The optimizer relies on the order being stable
// across calls.
func visit(n *Network, g *gradients, fn func(param, grad []float64)) {
	pairs := []struct {
		p, g [][]float64
	}{
		{n.L1.Wx, g.l1Wx}, {n.L1.Wh, g.l1Wh},
		{n.L2.Wx, g.l2Wx}, {n.L2.Wh, g.l2Wh},
		{n.D1.W, g.d1W}, {n.D2.W, g.d2W},
	}
	for _, pair := range pairs {
		for i := range pair.p {
			fn(pair.p[i], pair.g[i])
		}
	}
	fn(n.L1.B, g.l1B)
	fn(n.L2.B, g.l2B)
	fn(n.D1.B, g.d1B)
	fn(n.D2.B, g.d2B)
}

// ---------------------------------------------------------------------------
// Backward pass
// ---------------------------------------------------------------------------

// backward accumulates the gradients of the squared error for one sample
// into g. dOut is d(loss)/d(output).
func (n *Network) backward(cache *forwardCache, dOut float64, g *gradients) {
	// Output head.
	dD1out := make([]float64, len(n.D1.B))
	for j := range n.D2.W[0] {
		g.d2W[0][j] += dOut * cache.d1out[j]
		dD1out[j] = dOut * n.D2.W[0][j]
	}
	g.d2B[0] += dOut

	// Dense ReLU layer.
	dD1in := make([]float64, len(cache.d1in))
	for r := range n.D1.W {
		if cache.d1pre[r] <= 0 {
			continue
		}
		d := dD1out[r]
		g.d1B[r] += d
		for j := range n.D1.W[r] {
			g.d1W[r][j] += d * cache.d1in[j]
			dD1in[j] += d * n.D1.W[r][j]
		}
	}
	if cache.mask2 != nil {
		for j := range dD1in {
			dD1in[j] *= cache.mask2[j]
		}
	}

	// Layer-2 BPTT: loss depends only on the final hidden state.
	dh2 := make([][]float64, len(cache.steps2))
	dh2[len(dh2)-1] = dD1in
	dInputs2 := backwardSequence(&n.L2, cache.steps2, dh2, g.l2Wx, g.l2Wh, g.l2B)

	// Dropout between the layers.
	if cache.mask1 != nil {
		for t := range dInputs2 {
			for j := range dInputs2[t] {
				dInputs2[t][j] *= cache.mask1[t][j]
			}
		}
	}

	// Layer-1 BPTT: every timestep output feeds layer 2.
	backwardSequence(&n.L1, cache.steps1, dInputs2, g.l1Wx, g.l1Wh, g.l1B)
}

// backwardSequence backpropagates through an LSTM layer over time. dh[t] is
// the gradient flowing into the layer's hidden output at timestep t (nil for
// timesteps with no direct loss contribution). It returns the gradients with
// respect to the layer inputs.
func backwardSequence(l *lstmLayer, steps []lstmStep, dh [][]float64, gWx, gWh [][]float64, gB []float64) [][]float64 {
	h := l.HiddenSize
	dInputs := make([][]float64, len(steps))
	dhNext := make([]float64, h)
	dcNext := make([]float64, h)

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]

		dhTotal := make([]float64, h)
		copy(dhTotal, dhNext)
		if dh[t] != nil {
			for j := range dhTotal {
				dhTotal[j] += dh[t][j]
			}
		}

		dz := make([]float64, numGates*h)
		dcPrev := make([]float64, h)
		for j := 0; j < h; j++ {
			do := dhTotal[j] * s.tanhC[j]
			dc := dcNext[j] + dhTotal[j]*s.o[j]*(1-s.tanhC[j]*s.tanhC[j])

			di := dc * s.g[j]
			df := dc * s.cPrev[j]
			dg := dc * s.i[j]
			dcPrev[j] = dc * s.f[j]

			dz[j] = di * s.i[j] * (1 - s.i[j])
			dz[h+j] = df * s.f[j] * (1 - s.f[j])
			dz[2*h+j] = dg * (1 - s.g[j]*s.g[j])
			dz[3*h+j] = do * s.o[j] * (1 - s.o[j])
		}

		dx := make([]float64, l.InputSize)
		dhPrev := make([]float64, h)
		for r := 0; r < numGates*h; r++ {
			d := dz[r]
			if d == 0 {
				continue
			}
			gB[r] += d
			for j := range s.x {
				gWx[r][j] += d * s.x[j]
				dx[j] += d * l.Wx[r][j]
			}
			for j := range s.hPrev {
				gWh[r][j] += d * s.hPrev[j]
				dhPrev[j] += d * l.Wh[r][j]
			}
		}

		dInputs[t] = dx
		dhNext = dhPrev
		dcNext = dcPrev
	}
	return dInputs
}

// ---------------------------------------------------------------------------
// Adam optimizer
// ---------------------------------------------------------------------------

type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  *gradients
}

func newAdam(n *Network, lr float64) *adam {
	return &adam{
		lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-8,
		m: newGradients(n), v: newGradients(n),
	}
}

// step applies one Adam update from the accumulated gradients.
func (a *adam) step(n *Network, g *gradients) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	mi := collectRows(a.m)
	vi := collectRows(a.v)
	idx := 0
	visit(n, g, func(param, grad []float64) {
		m, v := mi[idx], vi[idx]
		idx++
		for j := range param {
			m[j] = a.beta1*m[j] + (1-a.beta1)*grad[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*grad[j]*grad[j]
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			param[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	})
}

// collectRows flattens a gradients struct into the same row order visit
// walks, so optimizer moments line up with parameters.
func collectRows(g *gradients) [][]float64 {
	var rows [][]float64
	for _, m := range [][][]float64{g.l1Wx, g.l1Wh, g.l2Wx, g.l2Wh, g.d1W, g.d2W} {
		rows = append(rows, m...)
	}
	rows = append(rows, g.l1B, g.l2B, g.d1B, g.d2B)
	return rows
}

func (g *gradients) zero() {
	for _, m := range [][][]float64{g.l1Wx, g.l1Wh, g.l2Wx, g.l2Wh, g.d1W, g.d2W} {
		for i := range m {
			for j := range m[i] {
				m[i][j] = 0
			}
		}
	}
	for _, b := range [][]float64{g.l1B, g.l2B, g.d1B, g.d2B} {
		for j := range b {
			b[j] = 0
		}
	}
}

func (g *gradients) scale(f float64) {
	for _, m := range [][][]float64{g.l1Wx, g.l1Wh, g.l2Wx, g.l2Wh, g.d1W, g.d2W} {
		for i := range m {
			for j := range m[i] {
				m[i][j] *= f
			}
		}
	}
	for _, b := range [][]float64{g.l1B, g.l2B, g.d1B, g.d2B} {
		for j := range b {
			b[j] *= f
		}
	}
}

// ---------------------------------------------------------------------------
// Training loop
// ---------------------------------------------------------------------------

// Fit trains the network on the train partition with mean squared error and
// Adam, evaluating against the validation partition after every epoch.
// Training stops early when the monitored loss has not improved for Patience
// consecutive epochs; the best weights seen are restored before returning.
// The monitored loss is validation loss, or train loss when the validation
// partition is empty.
func (n *Network) Fit(train, val features.Dataset, opts FitOptions) (*FitReport, error) {
	if train.Len() == 0 {
		return nil, errors.New("empty training set")
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	opt := newAdam(n, opts.LearningRate)
	grads := newGradients(n)
	log := slog.Default().With("component", "model")

	bestVal := math.Inf(1)
	var bestWeights []byte
	sinceImprove := 0

	report := &FitReport{}
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		var epochLoss float64
		for start := 0; start < train.Len(); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > train.Len() {
				end = train.Len()
			}

			grads.zero()
			for i := start; i < end; i++ {
				out, cache := n.forward(train.X[i], rng)
				diff := out - train.Y[i]
				epochLoss += diff * diff
				// d(MSE)/d(out) for one sample.
				n.backward(cache, 2*diff, grads)
			}
			grads.scale(1 / float64(end-start))
			opt.step(n, grads)
		}
		epochLoss /= float64(train.Len())

		monitored := epochLoss
		if val.Len() > 0 {
			monitored = n.evalLoss(val)
		}
		report.Epochs = epoch
		report.FinalLoss = epochLoss
		log.Debug("epoch complete", "epoch", epoch, "trainLoss", epochLoss, "monitoredLoss", monitored)

		if monitored < bestVal {
			bestVal = monitored
			sinceImprove = 0
			snapshot, err := json.Marshal(n)
			if err != nil {
				return nil, err
			}
			bestWeights = snapshot
		} else {
			sinceImprove++
			if opts.Patience > 0 && sinceImprove >= opts.Patience {
				report.EarlyStopped = true
				break
			}
		}
	}

	if bestWeights != nil {
		if err := json.Unmarshal(bestWeights, n); err != nil {
			return nil, err
		}
	}
	n.Trained = true
	report.BestValLoss = bestVal
	return report, nil
}

// evalLoss computes mean squared error over a dataset without dropout.
func (n *Network) evalLoss(ds features.Dataset) float64 {
	if ds.Len() == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range ds.X {
		out, _ := n.forward(ds.X[i], nil)
		diff := out - ds.Y[i]
		sum += diff * diff
	}
	return sum / float64(ds.Len())
}

// Evaluate returns the network's predictions over a dataset, for metric
// computation in original price space by the caller.
func (n *Network) Evaluate(ds features.Dataset) []float64 {
	preds := make([]float64, ds.Len())
	for i := range ds.X {
		preds[i], _ = n.forward(ds.X[i], nil)
	}
	return preds
}
