package calculators

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/openhealth/modelserve/pkg/errors"
	"github.com/openhealth/modelserve/pkg/models"
)

// NetworkSpec is the serialized form of a feed-forward network: ordered
// input feature names, dense layers, and output class labels.
type NetworkSpec struct {
	Inputs []string `json:"inputs"`
	Labels []string `json:"labels"`
	Layers []Layer  `json:"layers"`
}

// Layer is one dense layer: Weights[i][j] connects input j to unit i.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Biases     []float64   `json:"biases"`
	Activation string      `json:"activation"` // "relu", "sigmoid", "linear", "softmax"
}

// NetworkModel evaluates a NetworkSpec.
type NetworkModel struct {
	spec NetworkSpec
}

// DecodeNetwork parses a .network artifact into a NetworkModel.
func DecodeNetwork(data []byte) (*NetworkModel, error) {
	var spec NetworkSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeLoading, errors.CodeModelLoadFailed,
			"failed to parse network artifact")
	}

	if len(spec.Inputs) == 0 || len(spec.Labels) == 0 || len(spec.Layers) == 0 {
		return nil, errors.NewLoadingError(errors.CodeModelLoadFailed,
			"network artifact missing inputs, labels, or layers")
	}

	width := len(spec.Inputs)
	for i, layer := range spec.Layers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Biases) {
			return nil, errors.NewLoadingError(errors.CodeModelLoadFailed,
				fmt.Sprintf("network layer %d has inconsistent shape", i))
		}
		for _, row := range layer.Weights {
			if len(row) != width {
				return nil, errors.NewLoadingError(errors.CodeModelLoadFailed,
					fmt.Sprintf("network layer %d expects %d inputs, weights have %d", i, width, len(row)))
			}
		}
		width = len(layer.Weights)
	}
	if width != len(spec.Labels) {
		return nil, errors.NewLoadingError(errors.CodeModelLoadFailed,
			fmt.Sprintf("network outputs %d units for %d labels", width, len(spec.Labels)))
	}

	return &NetworkModel{spec: spec}, nil
}

// Predict runs a forward pass and returns the highest-probability label.
func (m *NetworkModel) Predict(ctx context.Context, features map[string]float64) (*models.Prediction, error) {
	vec := make([]float64, len(m.spec.Inputs))
	for i, name := range m.spec.Inputs {
		value, ok := features[name]
		if !ok {
			return nil, errors.WrapError(errors.ErrInvalidInput, errors.ErrorTypeValidation,
				errors.CodeInvalidInput, fmt.Sprintf("missing input feature: %s", name))
		}
		vec[i] = value
	}

	for _, layer := range m.spec.Layers {
		vec = layer.forward(vec)
	}

	// Normalize the final layer to probabilities unless it already did.
	last := m.spec.Layers[len(m.spec.Layers)-1]
	if last.Activation != "softmax" && last.Activation != "sigmoid" {
		vec = softmax(vec)
	}

	best := 0
	for i, p := range vec {
		if p > vec[best] {
			best = i
		}
	}

	scores := make(map[string]float64, len(vec))
	for i, label := range m.spec.Labels {
		scores[label] = vec[i]
	}

	return &models.Prediction{
		Label:      m.spec.Labels[best],
		Confidence: vec[best],
		Scores:     scores,
	}, nil
}

func (l *Layer) forward(in []float64) []float64 {
	out := make([]float64, len(l.Weights))
	for i, row := range l.Weights {
		sum := l.Biases[i]
		for j, w := range row {
			sum += w * in[j]
		}
		out[i] = sum
	}

	switch l.Activation {
	case "relu":
		for i, v := range out {
			if v < 0 {
				out[i] = 0
			}
		}
	case "sigmoid":
		for i, v := range out {
			out[i] = 1 / (1 + math.Exp(-v))
		}
	case "softmax":
		out = softmax(out)
	}
	return out
}

func softmax(v []float64) []float64 {
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	sum := 0.0
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Exp(x - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
