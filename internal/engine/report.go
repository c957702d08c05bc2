package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/graindeer/internal/weather"
)

// Record is the reporter's output for one simulated month.
type Record struct {
	MonthIndex int     `json:"month_index" db:"month_index"`
	Year       int     `json:"year" db:"year"`
	Month      int     `json:"month" db:"month"`
	TempF      float64 `json:"temp_f" db:"temp_f"`
	TempC      float64 `json:"temp_c" db:"temp_c"`
	PrecipIn   float64 `json:"precip_in" db:"precip_in"`
	PrecipCm   float64 `json:"precip_cm" db:"precip_cm"`
	Population int     `json:"population" db:"population"`
	ResourceIn float64 `json:"resource_in" db:"resource_in"`
	ResourceCm float64 `json:"resource_cm" db:"resource_cm"`
	Popularity float64 `json:"popularity" db:"popularity"`
}

// NewRecord captures the state of the current month.
func NewRecord(s State) Record {
	return Record{
		MonthIndex: s.Clock.MonthIndex,
		Year:       s.Clock.Year,
		Month:      s.Clock.Month,
		TempF:      s.Env.Temp,
		TempC:      s.Env.TempC(),
		PrecipIn:   s.Env.Precip,
		PrecipCm:   s.Env.PrecipCm(),
		Population: s.Population,
		ResourceIn: s.Resource,
		ResourceCm: weather.InchesToCm(s.Resource),
		Popularity: s.Popularity,
	}
}

// Recorder receives one record per simulated month, always from the
// reporter goroutine and in month order.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec Record) error

func (f RecorderFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

// Fanout sends every record to each recorder in order. All recorders see the
// record even if an earlier one fails; the errors are joined.
func Fanout(recorders ...Recorder) Recorder {
	return RecorderFunc(func(ctx context.Context, rec Record) error {
		var errs []error
		for _, r := range recorders {
			if err := r.Record(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Discard drops every record.
var Discard Recorder = RecorderFunc(func(context.Context, Record) error { return nil })

// TextRecorder writes a header and then one tab-separated row per month.
type TextRecorder struct {
	w           io.Writer
	wroteHeader bool
}

// NewTextRecorder creates a table writer on w.
func NewTextRecorder(w io.Writer) *TextRecorder {
	return &TextRecorder{w: w}
}

const textHeader = "month\tdate\ttemp_f\ttemp_c\tprecip_in\tprecip_cm\tpopulation\tresource_in\tresource_cm\tpopularity\n"

func (t *TextRecorder) Record(_ context.Context, rec Record) error {
	if !t.wroteHeader {
		if _, err := io.WriteString(t.w, textHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		t.wroteHeader = true
	}
	_, err := fmt.Fprintf(t.w, "%d\t%s %d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		rec.MonthIndex,
		MonthName(rec.Month), rec.Year,
		num(rec.TempF), num(rec.TempC),
		num(rec.PrecipIn), num(rec.PrecipCm),
		humanize.Comma(int64(rec.Population)),
		num(rec.ResourceIn), num(rec.ResourceCm),
		num(rec.Popularity),
	)
	if err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	return nil
}

func num(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

// LogRecorder logs each record as a structured "monthly report" line.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder logs to logger, or to slog.Default() when logger is nil.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (l *LogRecorder) Record(ctx context.Context, rec Record) error {
	l.logger.InfoContext(ctx, "monthly report",
		"month", rec.MonthIndex,
		"date", fmt.Sprintf("%s %d", MonthName(rec.Month), rec.Year),
		"season", SeasonName(SeasonOf(rec.Month)),
		"temp", fmt.Sprintf("%.2fF/%.2fC", rec.TempF, rec.TempC),
		"precip", fmt.Sprintf("%.2fin/%.2fcm", rec.PrecipIn, rec.PrecipCm),
		"population", rec.Population,
		"resource", fmt.Sprintf("%.2fin/%.2fcm", rec.ResourceIn, rec.ResourceCm),
		"popularity", fmt.Sprintf("%.2f", rec.Popularity),
	)
	return nil
}
