// Package engine runs the lock-step month simulation: four role goroutines
// that compute, publish and report the shared state once per simulated
// month, separated by a three-phase barrier.
package engine

import (
	"fmt"

	"github.com/talgya/graindeer/internal/config"
)

var monthNames = [config.MonthsPerYear]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// MonthName returns the three-letter name of a zero-based month.
func MonthName(month int) string {
	if month < 0 || month >= config.MonthsPerYear {
		return "???"
	}
	return monthNames[month]
}

// Clock is the simulated calendar. Only the reporter advances it.
type Clock struct {
	Year       int `json:"year"`
	Month      int `json:"month"`       // 0..11
	MonthIndex int `json:"month_index"` // monotonic, starts at 1
}

// Advance moves the clock forward one month, rolling the year over after
// December.
func (c *Clock) Advance() {
	c.Month++
	c.MonthIndex++
	if c.Month >= config.MonthsPerYear {
		c.Month = 0
		c.Year++
	}
}

// Reached reports whether the clock is at or past the start of endYear.
func (c Clock) Reached(endYear int) bool {
	return c.Year >= endYear
}

func (c Clock) String() string {
	return fmt.Sprintf("%s %d (month %d)", MonthName(c.Month), c.Year, c.MonthIndex)
}
