// Seasons and the seasonal popularity modifiers.
package engine

import "github.com/talgya/graindeer/internal/config"

// Season constants.
const (
	SeasonSpring = 0
	SeasonSummer = 1
	SeasonAutumn = 2
	SeasonWinter = 3
)

// SeasonName returns a human-readable season name.
func SeasonName(season uint8) string {
	switch season {
	case SeasonSpring:
		return "Spring"
	case SeasonSummer:
		return "Summer"
	case SeasonAutumn:
		return "Autumn"
	case SeasonWinter:
		return "Winter"
	default:
		return "Unknown"
	}
}

// SeasonOf returns the northern-hemisphere season of a zero-based month.
func SeasonOf(month int) uint8 {
	switch month {
	case 2, 3, 4:
		return SeasonSpring
	case 5, 6, 7:
		return SeasonSummer
	case 8, 9, 10:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}

// SeasonalPopularity applies the holiday boost in the boost month and the
// proportional decay across the decay range (inclusive) to v.
func SeasonalPopularity(cfg config.Popularity, month int, v float64) float64 {
	if month == cfg.BoostMonth {
		v *= cfg.BoostFactor
	}
	if month >= cfg.DecayStart && month <= cfg.DecayEnd {
		v -= v * cfg.DecayFraction
	}
	return v
}
