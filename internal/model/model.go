// Package model loads forecasting artifacts and shapes feature frames to
// each artifact's expected input schema.
package model

import (
	"fmt"
	"math"
)

// Frame is a single named feature vector, the aggregated input to a forecast.
type Frame struct {
	Columns []string
	Values  []float64
}

// Set appends a column or replaces its value when already present.
func (f *Frame) Set(col string, v float64) {
	for i, c := range f.Columns {
		if c == col {
			f.Values[i] = v
			return
		}
	}
	f.Columns = append(f.Columns, col)
	f.Values = append(f.Values, v)
}

// Get returns a column's value and whether the column exists.
func (f *Frame) Get(col string) (float64, bool) {
	for i, c := range f.Columns {
		if c == col {
			return f.Values[i], true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() Frame {
	return Frame{
		Columns: append([]string(nil), f.Columns...),
		Values:  append([]float64(nil), f.Values...),
	}
}

// Model is a loaded forecasting artifact. FeatureNames returns the ordered
// input schema the artifact was trained with, or nil when the artifact does
// not carry one (legacy format).
type Model interface {
	Predict(f Frame) (float64, error)
	FeatureNames() []string
}

// artifact is the on-disk regressor payload shared by both formats: a linear
// model with an intercept and one coefficient per feature. The legacy gob
// format may omit Features, in which case prediction is positional.
type artifact struct {
	Features     []string  `json:"features,omitempty"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

func (a *artifact) FeatureNames() []string {
	if len(a.Features) == 0 {
		return nil
	}
	return a.Features
}

func (a *artifact) Predict(f Frame) (float64, error) {
	if len(a.Features) > 0 {
		if len(a.Coefficients) != len(a.Features) {
			return 0, fmt.Errorf("artifact has %d coefficients for %d features",
				len(a.Coefficients), len(a.Features))
		}
		y := a.Intercept
		for i, name := range a.Features {
			v, ok := f.Get(name)
			if !ok {
				return 0, fmt.Errorf("feature %q missing from frame", name)
			}
			y += a.Coefficients[i] * v
		}
		if math.IsNaN(y) {
			return 0, fmt.Errorf("prediction is NaN")
		}
		return y, nil
	}

	// No declared schema: consume the frame positionally.
	if len(f.Values) != len(a.Coefficients) {
		return 0, fmt.Errorf("frame has %d columns, artifact expects %d",
			len(f.Values), len(a.Coefficients))
	}
	y := a.Intercept
	for i, v := range f.Values {
		y += a.Coefficients[i] * v
	}
	if math.IsNaN(y) {
		return 0, fmt.Errorf("prediction is NaN")
	}
	return y, nil
}

// AlignFeatures shapes a frame to a model's declared schema: declared columns
// in declared order, extras dropped, missing columns zero-filled. Models
// without a declared schema receive the frame unchanged.
func AlignFeatures(f Frame, m Model) Frame {
	names := m.FeatureNames()
	if names == nil {
		return f.Clone()
	}
	aligned := Frame{
		Columns: append([]string(nil), names...),
		Values:  make([]float64, len(names)),
	}
	for i, name := range names {
		if v, ok := f.Get(name); ok {
			aligned.Values[i] = v
		}
	}
	return aligned
}
