package post

import (
	"math"
	"testing"

	"github.com/lucasjlepore/fitdecode/decode"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestConvertValueCelsiusToFahrenheitStatute(t *testing.T) {
	got := convertValue("temperature", "c", 20, Options{Units: decode.UnitsModeStatute})
	if !approxEqual(got, 68.0, 0.001) {
		t.Errorf("20c statute = %v, want 68", got)
	}
}

func TestConvertValueCelsiusMetricPassthrough(t *testing.T) {
	got := convertValue("temperature", "c", 20, Options{Units: decode.UnitsModeMetric})
	if got != 20 {
		t.Errorf("20c metric passthrough = %v, want 20", got)
	}
}

func TestConvertValueSemicircles(t *testing.T) {
	got := convertValue("position_lat", "semicircles", math.Pow(2, 31), Options{Units: decode.UnitsModeMetric})
	if !approxEqual(got, 180.0, 0.001) {
		t.Errorf("semicircles = %v, want 180", got)
	}
}

func TestConvertValueDistanceStatute(t *testing.T) {
	got := convertValue("distance", "m", 1609.34, Options{Units: decode.UnitsModeStatute})
	if !approxEqual(got, 1.0, 0.01) {
		t.Errorf("1609.34m statute = %v, want ~1 mile", got)
	}
}

func TestConvertValueDistanceMetricPassthrough(t *testing.T) {
	got := convertValue("distance", "m", 1000, Options{Units: decode.UnitsModeMetric})
	if got != 1000 {
		t.Errorf("metric distance passthrough = %v, want 1000", got)
	}
}

func TestConvertValueAltitudeStatuteUsesFeet(t *testing.T) {
	got := convertValue("altitude", "m", 100, Options{Units: decode.UnitsModeStatute})
	if !approxEqual(got, 328.1, 0.1) {
		t.Errorf("100m altitude statute = %v, want ~328.1ft", got)
	}
}

func TestConvertSpeedMetricKmh(t *testing.T) {
	got := convertSpeed(10, Options{Units: decode.UnitsModeMetric})
	if !approxEqual(got, 36.0, 0.001) {
		t.Errorf("10m/s metric = %v, want 36km/h", got)
	}
}

func TestConvertSpeedStatuteMph(t *testing.T) {
	got := convertSpeed(10, Options{Units: decode.UnitsModeStatute})
	if !approxEqual(got, 22.3693629, 0.001) {
		t.Errorf("10m/s statute = %v, want ~22.37mph", got)
	}
}

func TestConvertSpeedZeroIsZero(t *testing.T) {
	got := convertSpeed(0, Options{Units: decode.UnitsModeMetric, Pace: true})
	if got != 0 {
		t.Errorf("zero speed pace = %v, want 0", got)
	}
}

func TestConvertSpeedMetricPace(t *testing.T) {
	got := convertSpeed(10, Options{Units: decode.UnitsModeMetric, Pace: true})
	want := 60 / 3.6 / 10
	if !approxEqual(got, want, 0.001) {
		t.Errorf("10m/s metric pace = %v, want %v", got, want)
	}
}
