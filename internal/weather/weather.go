// Package weather computes the environmental drivers of the simulation:
// monthly temperature and precipitation from a seasonal curve, a slow
// climate drift, and per-month noise.
package weather

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/graindeer/internal/config"
)

// RandomSource supplies the per-month noise. The caller owns it; Model never
// keeps a reference.
type RandomSource interface {
	Float(low, high float64) float64
}

// Drivers holds one month of environmental conditions.
type Drivers struct {
	Temp   float64 `json:"temp_f"`    // °F
	Precip float64 `json:"precip_in"` // inches
}

// TempC returns the temperature in Celsius.
func (d Drivers) TempC() float64 { return FahrenheitToCelsius(d.Temp) }

// PrecipCm returns the precipitation in centimetres.
func (d Drivers) PrecipCm() float64 { return InchesToCm(d.Precip) }

// Model evaluates the environment for a given month. It holds no mutable
// state, so one Model may be read from any goroutine.
type Model struct {
	cfg   config.Environment
	drift opensimplex.Noise
}

// NewModel creates a model whose drift term is fixed by seed.
func NewModel(cfg config.Environment, seed uint64) *Model {
	return &Model{
		cfg:   cfg,
		drift: opensimplex.NewNormalized(int64(seed)),
	}
}

// Drivers returns the conditions for month-of-year month (0..11) at the
// absolute month counter monthIndex. It draws exactly two values from rng:
// temperature noise first, then precipitation noise.
func (m *Model) Drivers(month, monthIndex int, rng RandomSource) Drivers {
	ang := (30.0*float64(month) + 15.0) * (math.Pi / 180.0)
	tempDrift, precipDrift := m.Drift(monthIndex)

	temp := m.cfg.AvgTemp - m.cfg.AmpTemp*math.Cos(ang) + tempDrift
	temp += rng.Float(-m.cfg.NoiseTemp, m.cfg.NoiseTemp)

	precip := m.cfg.AvgPrecip + m.cfg.AmpPrecip*math.Sin(ang) + precipDrift
	precip += rng.Float(-m.cfg.NoisePrecip, m.cfg.NoisePrecip)
	if precip < 0 {
		precip = 0
	}

	return Drivers{Temp: temp, Precip: precip}
}

// Drift returns the slow climate anomaly for temperature and precipitation
// at monthIndex, each bounded by its configured amplitude.
func (m *Model) Drift(monthIndex int) (temp, precip float64) {
	if m.cfg.DriftPeriod <= 0 {
		return 0, 0
	}
	t := float64(monthIndex) / m.cfg.DriftPeriod
	// Separate rows of the same noise field keep the two anomalies uncorrelated.
	temp = m.cfg.DriftTemp * (2*m.drift.Eval2(t, 0) - 1)
	precip = m.cfg.DriftPrecip * (2*m.drift.Eval2(t, 17.5) - 1)
	return temp, precip
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (5.0 / 9.0) * (f - 32)
}

// InchesToCm converts inches to centimetres.
func InchesToCm(in float64) float64 {
	return in * 2.54
}
