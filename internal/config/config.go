// Package config holds the simulation parameters: calendar bounds, starting
// values, and the coefficients of the environment and role models.
//
// Parameters start from Default, may be overlaid by a YAML file (Load) and by
// GRAINDEER_* environment variables (ApplyEnv), and must pass Validate before
// a simulation is built from them.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "GRAINDEER_"

// MonthsPerYear is the length of a simulated year.
const MonthsPerYear = 12

// Config is the full parameter set of one simulation run.
// Month numbers are zero-based (0 = January).
type Config struct {
	StartYear int    `yaml:"start_year" json:"start_year" env:"START_YEAR"`
	EndYear   int    `yaml:"end_year" json:"end_year" env:"END_YEAR"`
	Seed      uint64 `yaml:"seed" json:"seed" env:"SEED"` // 0 = draw a fresh seed

	Initial     Initial     `yaml:"initial" json:"initial" envPrefix:"INITIAL_"`
	Environment Environment `yaml:"environment" json:"environment" envPrefix:"ENV_"`
	Resource    Resource    `yaml:"resource" json:"resource" envPrefix:"RESOURCE_"`
	Popularity  Popularity  `yaml:"popularity" json:"popularity" envPrefix:"POPULARITY_"`
}

// Initial holds the pre-seeded state for the first simulated month.
type Initial struct {
	Month      int     `yaml:"month" json:"month" env:"MONTH"`
	Population int     `yaml:"population" json:"population" env:"POPULATION"`
	Resource   float64 `yaml:"resource" json:"resource" env:"RESOURCE"`       // inches
	Popularity float64 `yaml:"popularity" json:"popularity" env:"POPULARITY"` // index units
}

// Environment holds the seasonal temperature and precipitation curves.
type Environment struct {
	AvgTemp   float64 `yaml:"avg_temp" json:"avg_temp" env:"AVG_TEMP"`       // °F
	AmpTemp   float64 `yaml:"amp_temp" json:"amp_temp" env:"AMP_TEMP"`       // ± °F
	NoiseTemp float64 `yaml:"noise_temp" json:"noise_temp" env:"NOISE_TEMP"` // ± °F
	DriftTemp float64 `yaml:"drift_temp" json:"drift_temp" env:"DRIFT_TEMP"` // ± °F, slow multi-year anomaly

	AvgPrecip   float64 `yaml:"avg_precip" json:"avg_precip" env:"AVG_PRECIP"`       // inches per month
	AmpPrecip   float64 `yaml:"amp_precip" json:"amp_precip" env:"AMP_PRECIP"`       // ± inches
	NoisePrecip float64 `yaml:"noise_precip" json:"noise_precip" env:"NOISE_PRECIP"` // ± inches
	DriftPrecip float64 `yaml:"drift_precip" json:"drift_precip" env:"DRIFT_PRECIP"` // ± inches

	// DriftPeriod is the rough length, in months, of one climate anomaly swing.
	DriftPeriod float64 `yaml:"drift_period" json:"drift_period" env:"DRIFT_PERIOD"`
}

// Resource holds the growth and depletion coefficients of the resource role.
type Resource struct {
	GrowthPerMonth       float64 `yaml:"growth_per_month" json:"growth_per_month" env:"GROWTH_PER_MONTH"`
	ConsumptionPerCapita float64 `yaml:"consumption_per_capita" json:"consumption_per_capita" env:"CONSUMPTION_PER_CAPITA"`
	PopularityDepletion  float64 `yaml:"popularity_depletion" json:"popularity_depletion" env:"POPULARITY_DEPLETION"`

	IdealTemp    float64 `yaml:"ideal_temp" json:"ideal_temp" env:"IDEAL_TEMP"`
	TempSpread   float64 `yaml:"temp_spread" json:"temp_spread" env:"TEMP_SPREAD"`
	IdealPrecip  float64 `yaml:"ideal_precip" json:"ideal_precip" env:"IDEAL_PRECIP"`
	PrecipSpread float64 `yaml:"precip_spread" json:"precip_spread" env:"PRECIP_SPREAD"`
}

// Popularity holds the random-walk and seasonal coefficients of the popularity role.
type Popularity struct {
	Noise     float64 `yaml:"noise" json:"noise" env:"NOISE"`
	Baseline  float64 `yaml:"baseline" json:"baseline" env:"BASELINE"`
	Reversion float64 `yaml:"reversion" json:"reversion" env:"REVERSION"` // fraction of the gap to Baseline closed per month

	BoostMonth  int     `yaml:"boost_month" json:"boost_month" env:"BOOST_MONTH"`
	BoostFactor float64 `yaml:"boost_factor" json:"boost_factor" env:"BOOST_FACTOR"`

	DecayStart    int     `yaml:"decay_start" json:"decay_start" env:"DECAY_START"`
	DecayEnd      int     `yaml:"decay_end" json:"decay_end" env:"DECAY_END"`
	DecayFraction float64 `yaml:"decay_fraction" json:"decay_fraction" env:"DECAY_FRACTION"`
}

// Default returns the classic six-year grain and graindeer scenario.
func Default() Config {
	return Config{
		StartYear: 2019,
		EndYear:   2025,
		Seed:      0,
		Initial: Initial{
			Month:      0,
			Population: 1,
			Resource:   1.0,
			Popularity: 20.0,
		},
		Environment: Environment{
			AvgTemp:     50.0,
			AmpTemp:     20.0,
			NoiseTemp:   10.0,
			DriftTemp:   2.0,
			AvgPrecip:   6.0,
			AmpPrecip:   6.0,
			NoisePrecip: 2.0,
			DriftPrecip: 0.5,
			DriftPeriod: 36.0,
		},
		Resource: Resource{
			GrowthPerMonth:       8.0,
			ConsumptionPerCapita: 0.5,
			PopularityDepletion:  0.15,
			IdealTemp:            40.0,
			TempSpread:           10.0,
			IdealPrecip:          10.0,
			PrecipSpread:         10.0,
		},
		Popularity: Popularity{
			Noise:         5.0,
			Baseline:      20.0,
			Reversion:     0.05,
			BoostMonth:    11, // December holidays
			BoostFactor:   1.5,
			DecayStart:    4, // May
			DecayEnd:      6, // July
			DecayFraction: 0.025,
		},
	}
}

// Months returns the number of months the configuration simulates.
func (c Config) Months() int {
	return (c.EndYear-c.StartYear)*MonthsPerYear - c.Initial.Month
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays GRAINDEER_* environment variables onto cfg,
// e.g. GRAINDEER_END_YEAR or GRAINDEER_POPULARITY_BOOST_MONTH.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Error reports one invalid parameter.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Validate checks the configuration before any role is launched. All
// problems are reported together; each is an *Error.
func (c Config) Validate() error {
	var errs []error
	bad := func(field, reason string) {
		errs = append(errs, &Error{Field: field, Reason: reason})
	}

	if c.EndYear <= c.StartYear {
		bad("end_year", fmt.Sprintf("must be after start_year (%d), got %d", c.StartYear, c.EndYear))
	}
	if !validMonth(c.Initial.Month) {
		bad("initial.month", "must be in 0..11")
	}
	if c.Initial.Population < 0 {
		bad("initial.population", "must not be negative")
	}
	if c.Initial.Resource < 0 {
		bad("initial.resource", "must not be negative")
	}
	if c.Initial.Popularity < 0 {
		bad("initial.popularity", "must not be negative")
	}

	if c.Environment.AmpTemp < 0 || c.Environment.NoiseTemp < 0 || c.Environment.DriftTemp < 0 {
		bad("environment", "temperature amplitude, noise and drift must not be negative")
	}
	if c.Environment.AmpPrecip < 0 || c.Environment.NoisePrecip < 0 || c.Environment.DriftPrecip < 0 {
		bad("environment", "precipitation amplitude, noise and drift must not be negative")
	}
	if c.Environment.DriftPeriod <= 0 {
		bad("environment.drift_period", "must be positive")
	}

	if c.Resource.GrowthPerMonth < 0 {
		bad("resource.growth_per_month", "must not be negative")
	}
	if c.Resource.ConsumptionPerCapita < 0 {
		bad("resource.consumption_per_capita", "must not be negative")
	}
	if c.Resource.PopularityDepletion < 0 {
		bad("resource.popularity_depletion", "must not be negative")
	}
	if c.Resource.TempSpread <= 0 || c.Resource.PrecipSpread <= 0 {
		bad("resource", "temp_spread and precip_spread must be positive")
	}

	p := c.Popularity
	if p.Noise < 0 {
		bad("popularity.noise", "must not be negative")
	}
	if p.Reversion < 0 || p.Reversion > 1 {
		bad("popularity.reversion", "must be in 0..1")
	}
	if !validMonth(p.BoostMonth) {
		bad("popularity.boost_month", "must be in 0..11")
	}
	if p.BoostFactor < 0 {
		bad("popularity.boost_factor", "must not be negative")
	}
	if !validMonth(p.DecayStart) || !validMonth(p.DecayEnd) {
		bad("popularity.decay_start/decay_end", "must be in 0..11")
	} else if p.DecayStart > p.DecayEnd {
		bad("popularity.decay_start", "must not be after decay_end")
	}
	if p.DecayFraction < 0 || p.DecayFraction > 1 {
		bad("popularity.decay_fraction", "must be in 0..1")
	}

	return errors.Join(errs...)
}

func validMonth(m int) bool {
	return m >= 0 && m < MonthsPerYear
}
