package inference

import (
	"fmt"
	"io"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

type activation string

const (
	activationNone    activation = "none"
	activationReLU    activation = "relu"
	activationSigmoid activation = "sigmoid"
	activationSoftmax activation = "softmax"
)

// modelFile is the on-disk model asset.
type modelFile struct {
	Name       string      `yaml:"name"`
	InputShape []int       `yaml:"inputShape"`
	Layers     []layerFile `yaml:"layers"`
}

type layerFile struct {
	Weights    [][]float64 `yaml:"weights"` // outputs x inputs
	Bias       []float64   `yaml:"bias"`
	Activation string      `yaml:"activation"`
}

type denseLayer struct {
	weights    *mat.Dense
	bias       *mat.VecDense
	activation activation
}

// Model is a deserialized feed-forward classifier. It is read-only once built
// and safe for concurrent Predict calls.
type Model struct {
	name       string
	inputShape []int
	layers     []denseLayer
}

func (m *Model) Name() string {
	return m.name
}

// InputShape returns a copy of the expected input tensor shape.
func (m *Model) InputShape() []int {
	return slices.Clone(m.inputShape)
}

// Predict classifies a tensor. The tensor shape is not checked against the model,
// but a tensor whose element count does not fit the first layer fails in the backend.
func (m *Model) Predict(t Tensor) (Prediction, error) {
	scores, err := m.Scores(t)
	if err != nil {
		return Prediction{}, err
	}
	return NewPrediction(scores), nil
}

// Scores runs the forward pass and returns the raw per-class outputs.
func (m *Model) Scores(t Tensor) (scores []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores = nil
			err = &PredictionError{Err: fmt.Errorf("numeric backend panic: %v", r)}
		}
	}()

	if len(t.Data) == 0 {
		return nil, &PredictionError{Err: fmt.Errorf("empty input tensor")}
	}
	_, in := m.layers[0].weights.Dims()
	if len(t.Data) != in {
		return nil, &PredictionError{Err: fmt.Errorf("input has %d values, model expects %d", len(t.Data), in)}
	}

	values := make([]float64, len(t.Data))
	for i, v := range t.Data {
		values[i] = float64(v)
	}
	x := mat.NewVecDense(len(values), values)

	for i, layer := range m.layers {
		rows, _ := layer.weights.Dims()
		y := mat.NewVecDense(rows, nil)
		y.MulVec(layer.weights, x)
		y.AddVec(y, layer.bias)
		applyActivation(y, layer.activation)
		for j := 0; j < y.Len(); j++ {
			if v := y.AtVec(j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &PredictionError{Err: fmt.Errorf("layer %d produced non-finite value %v", i, v)}
			}
		}
		x = y
	}

	out := make([]float64, x.Len())
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, nil
}

func applyActivation(v *mat.VecDense, act activation) {
	n := v.Len()
	switch act {
	case activationReLU:
		for i := 0; i < n; i++ {
			if v.AtVec(i) < 0 {
				v.SetVec(i, 0)
			}
		}
	case activationSigmoid:
		for i := 0; i < n; i++ {
			v.SetVec(i, 1/(1+math.Exp(-v.AtVec(i))))
		}
	case activationSoftmax:
		maxValue := mat.Max(v)
		sum := 0.0
		for i := 0; i < n; i++ {
			e := math.Exp(v.AtVec(i) - maxValue)
			v.SetVec(i, e)
			sum += e
		}
		v.ScaleVec(1/sum, v)
	}
}

// decodeModel parses and validates a model asset.
func decodeModel(r io.Reader) (*Model, error) {
	var file modelFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	return buildModel(file)
}

func buildModel(file modelFile) (*Model, error) {
	if len(file.Layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	for i, dim := range file.InputShape {
		if dim <= 0 {
			return nil, fmt.Errorf("input shape dimension %d must be positive, got %d", i, dim)
		}
	}

	model := &Model{
		name:       file.Name,
		inputShape: file.InputShape,
		layers:     make([]denseLayer, 0, len(file.Layers)),
	}

	expectedIn := ShapeSize(file.InputShape)
	for i, lf := range file.Layers {
		layer, err := buildLayer(lf)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		rows, cols := layer.weights.Dims()
		if expectedIn > 0 && cols != expectedIn {
			return nil, fmt.Errorf("layer %d expects %d inputs, previous stage provides %d", i, cols, expectedIn)
		}
		expectedIn = rows
		model.layers = append(model.layers, layer)
	}
	return model, nil
}

func buildLayer(lf layerFile) (denseLayer, error) {
	rows := len(lf.Weights)
	if rows == 0 || len(lf.Weights[0]) == 0 {
		return denseLayer{}, fmt.Errorf("empty weights")
	}
	cols := len(lf.Weights[0])
	data := make([]float64, 0, rows*cols)
	for r, row := range lf.Weights {
		if len(row) != cols {
			return denseLayer{}, fmt.Errorf("weights row %d has %d columns, want %d", r, len(row), cols)
		}
		data = append(data, row...)
	}
	if len(lf.Bias) != rows {
		return denseLayer{}, fmt.Errorf("bias has %d values, want %d", len(lf.Bias), rows)
	}

	act := activation(lf.Activation)
	if act == "" {
		act = activationNone
	}
	switch act {
	case activationNone, activationReLU, activationSigmoid, activationSoftmax:
	default:
		return denseLayer{}, fmt.Errorf("unsupported activation %q", lf.Activation)
	}

	return denseLayer{
		weights:    mat.NewDense(rows, cols, data),
		bias:       mat.NewVecDense(rows, slices.Clone(lf.Bias)),
		activation: act,
	}, nil
}
