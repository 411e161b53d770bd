package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	chart "github.com/wcharczuk/go-chart/v2"

	"marketwatch/internal/storage"
)

// ErrNoData is returned when the trailing window holds no samples.
var ErrNoData = errors.New("no data")

// Options shape the rendered report.
type Options struct {
	Window    time.Duration
	Width     int
	Height    int
	MaxPoints int
}

// Reporter queries a trailing window and renders it.
type Reporter struct {
	reader storage.SampleReader
	opts   Options
	logger zerolog.Logger
}

// New constructs a Reporter. Zero options fall back to a 30 day window and 1280x720.
func New(reader storage.SampleReader, opts Options, logger zerolog.Logger) *Reporter {
	if opts.Window <= 0 {
		opts.Window = 30 * 24 * time.Hour
	}
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	return &Reporter{
		reader: reader,
		opts:   opts,
		logger: logger.With().Str("component", "report").Logger(),
	}
}

// Window returns the trailing window length.
func (r *Reporter) Window() time.Duration { return r.opts.Window }

// Samples returns the rows captured at or after now-window, oldest first.
func (r *Reporter) Samples(ctx context.Context, now time.Time) ([]storage.Sample, error) {
	if r.reader == nil {
		return nil, storage.ErrNotConfigured
	}
	since := now.Add(-r.opts.Window)
	return r.reader.ListSamples(ctx, &since)
}

// Chart renders the window as a PNG into w and returns the number of samples
// plotted. Nothing is written when the window is empty.
func (r *Reporter) Chart(ctx context.Context, now time.Time, w io.Writer) (int, error) {
	samples, err := r.Samples(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		return 0, ErrNoData
	}

	plotted := downsampleSamples(samples, r.opts.MaxPoints)
	var buf bytes.Buffer
	if err := renderPNG(&buf, plotted, r.opts.Width, r.opts.Height); err != nil {
		return 0, fmt.Errorf("render chart: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, err
	}
	return len(plotted), nil
}

// RenderFile writes the chart PNG to path. An empty window is reported and
// leaves no file behind.
func (r *Reporter) RenderFile(ctx context.Context, now time.Time, path string) (int, error) {
	var buf bytes.Buffer
	n, err := r.Chart(ctx, now, &buf)
	if errors.Is(err, ErrNoData) {
		r.logger.Info().Dur("window", r.opts.Window).Msg("no data")
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	if err := ensureDir(path); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write chart: %w", err)
	}

	r.logger.Info().Str("path", path).Int("points", n).Msg("chart rendered")
	return n, nil
}

// ExportCSV writes the window as CSV to path.
func (r *Reporter) ExportCSV(ctx context.Context, now time.Time, path string) (int, error) {
	samples, err := r.Samples(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(samples) == 0 {
		r.logger.Info().Dur("window", r.opts.Window).Msg("no samples found for export window")
		return 0, ErrNoData
	}

	exported := downsampleSamples(samples, r.opts.MaxPoints)
	if err := ensureDir(path); err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if err := WriteCSV(file, exported); err != nil {
		return 0, err
	}
	r.logger.Info().Int("total", len(samples)).Int("exported", len(exported)).Str("path", path).Msg("exported samples")
	return len(exported), nil
}

// WriteCSV emits one header row and one row per sample. A NULL index value is
// written as an empty cell.
func WriteCSV(w io.Writer, samples []storage.Sample) error {
	writer := csv.NewWriter(w)

	header := []string{"ts", "index_value", "fx_rate", "exchange_price"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		index := ""
		if sample.HasIndex() {
			index = formatFloat(sample.IndexValue)
		}
		record := []string{
			sample.Timestamp.UTC().Format(time.RFC3339Nano),
			index,
			formatFloat(sample.FXRate),
			formatFloat(sample.ExchangePrice),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderPNG(w io.Writer, samples []storage.Sample, width, height int) error {
	x := make([]time.Time, len(samples))
	fx := make([]float64, len(samples))
	exchange := make([]float64, len(samples))
	indexX := make([]time.Time, 0, len(samples))
	index := make([]float64, 0, len(samples))

	for i, sample := range samples {
		x[i] = sample.Timestamp
		fx[i] = sample.FXRate
		exchange[i] = sample.ExchangePrice
		if sample.HasIndex() {
			indexX = append(indexX, sample.Timestamp)
			index = append(index, sample.IndexValue)
		}
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	indexFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "USD/KRW",
			XValues: x,
			YValues: fx,
		},
		chart.TimeSeries{
			Name:    "USDT/KRW (Bithumb)",
			XValues: x,
			YValues: exchange,
		},
	}
	if len(index) > 0 {
		series = append(series, chart.TimeSeries{
			Name:    "Dollar index",
			XValues: indexX,
			YValues: index,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name:           "KRW",
			ValueFormatter: priceFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Index",
			ValueFormatter: indexFormatter,
		},
		Series: series,
	}
	if r := flatRange(index); r != nil {
		graph.YAxisSecondary.Range = r
	}
	if r := flatRange(append(append([]float64{}, fx...), exchange...)); r != nil {
		graph.YAxis.Range = r
	}
	if x[0].Equal(x[len(x)-1]) {
		mid := chart.TimeToFloat64(x[0])
		pad := float64(time.Hour)
		graph.XAxis.Range = &chart.ContinuousRange{Min: mid - pad, Max: mid + pad}
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// flatRange returns a padded range when every value is identical, which
// go-chart otherwise refuses to render.
func flatRange(values []float64) *chart.ContinuousRange {
	if len(values) == 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi > lo {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.01, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func downsampleSamples(samples []storage.Sample, max int) []storage.Sample {
	if max <= 1 || len(samples) <= max {
		return samples
	}

	result := make([]storage.Sample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
