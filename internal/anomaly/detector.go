// Package anomaly flags outliers in a city's recent AQI series.
package anomaly

import "math"

// Verdict is the tri-state outcome of detection. Undetermined means the
// history was too short to decide and must not be collapsed to Normal.
type Verdict int

const (
	Undetermined Verdict = iota
	Normal
	Anomalous
)

func (v Verdict) String() string {
	switch v {
	case Normal:
		return "normal"
	case Anomalous:
		return "anomalous"
	default:
		return "undetermined"
	}
}

// Bool returns the verdict as a nullable flag for persistence: nil when
// undetermined.
func (v Verdict) Bool() *bool {
	switch v {
	case Normal:
		f := false
		return &f
	case Anomalous:
		t := true
		return &t
	default:
		return nil
	}
}

// Detector scores the most recent value of a series against its trailing
// history: a rolling z-score test first, an isolation forest when the
// z-score is inconclusive (zero variance in the history).
type Detector struct {
	MinPoints     int
	ZThreshold    float64
	Contamination float64
	Seed          int64
}

// NewDetector returns a detector with the production thresholds.
func NewDetector(minPoints int, zThreshold, contamination float64) *Detector {
	return &Detector{
		MinPoints:     minPoints,
		ZThreshold:    zThreshold,
		Contamination: contamination,
		Seed:          42,
	}
}

// Detect evaluates the series, most recent value last.
func (d *Detector) Detect(series []float64) Verdict {
	if len(series) < d.MinPoints {
		return Undetermined
	}
	if v, ok := d.rollingZ(series); ok {
		return v
	}
	return d.isolation(series)
}

// rollingZ compares the last value against the mean and population standard
// deviation of everything before it. ok is false when the history has no
// variance and the test cannot decide.
func (d *Detector) rollingZ(series []float64) (Verdict, bool) {
	history := series[:len(series)-1]

	mean := 0.0
	for _, v := range history {
		mean += v
	}
	mean /= float64(len(history))

	variance := 0.0
	for _, v := range history {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(history))
	std := math.Sqrt(variance)

	if std == 0 || math.IsNaN(std) {
		return Undetermined, false
	}

	z := (series[len(series)-1] - mean) / std
	if math.Abs(z) > d.ZThreshold {
		return Anomalous, true
	}
	return Normal, true
}

func (d *Detector) isolation(series []float64) Verdict {
	forest := fitIsolationForest(series, d.Seed)
	if forest.isOutlier(series, len(series)-1, d.Contamination) {
		return Anomalous
	}
	return Normal
}
