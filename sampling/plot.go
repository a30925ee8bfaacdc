package sampling

import (
	"fmt"
	"image/color"
	"image/png"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

func bandColor(name string) color.RGBA {
	for i, n := range lightcurve.BandNames {
		if n == name {
			return lightcurve.BandColors[i]
		}
	}
	return color.RGBA{A: 255}
}

// SummaryPlot draws each band's mean with a translucent sigma band on an inverted
// magnitude axis.
func SummaryPlot(cond params.Row, summaries []BandSummary) (*plot.Plot, error) {
	if len(summaries) == 0 || len(summaries[0].Time) == 0 {
		return nil, fmt.Errorf("nothing to plot")
	}
	t := summaries[0].Time
	title := fmt.Sprintf("m1: %.3g, m2: %.3g, l1: %.3g, l2: %.3g", cond.M1, cond.M2, cond.L1, cond.L2)
	p := lightcurve.NewMagnitudePlot(title, t[0], t[len(t)-1])

	for _, s := range summaries {
		col := bandColor(s.Band)

		// Upper edge forward, lower edge back, closes the band.
		outline := make(plotter.XYs, 0, 2*len(s.Time))
		for i := range s.Time {
			outline = append(outline, plotter.XY{X: s.Time[i], Y: s.Upper[i]})
		}
		for i := len(s.Time) - 1; i >= 0; i-- {
			outline = append(outline, plotter.XY{X: s.Time[i], Y: s.Lower[i]})
		}
		poly, err := plotter.NewPolygon(outline)
		if err != nil {
			return nil, err
		}
		fill := col
		fill.A = 51
		poly.Color = fill
		poly.LineStyle.Width = 0
		p.Add(poly)

		mean := make(plotter.XYs, len(s.Time))
		for i := range s.Time {
			mean[i].X = s.Time[i]
			mean[i].Y = s.Mean[i]
		}
		line, err := plotter.NewLine(mean)
		if err != nil {
			return nil, err
		}
		line.Color = col
		p.Add(line)
		p.Legend.Add(s.Band, line)
	}
	return p, nil
}

// SaveSummaryPlot writes the summary plot to a PNG file.
func SaveSummaryPlot(filename string, cond params.Row, summaries []BandSummary, wPx, hPx float64) error {
	p, err := SummaryPlot(cond, summaries)
	if err != nil {
		return err
	}

	canvas := newCanvas(wPx, hPx)
	p.Draw(draw.New(canvas))
	return savePNG(filename, canvas)
}

// HistogramPlots returns one row per band holding histograms of the kept samples' ranges,
// peak magnitudes and faintest magnitudes.
func HistogramPlots(summaries []BandSummary) ([][]*plot.Plot, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("nothing to plot")
	}
	rows := make([][]*plot.Plot, len(summaries))
	for i, s := range summaries {
		if s.Kept == 0 {
			return nil, fmt.Errorf("band %s has no kept samples", s.Band)
		}
		panels := []struct {
			title, x string
			values   []float64
		}{
			{s.Band + " ranges", "normalized range", s.ranges},
			{s.Band + " peaks", "brightest magnitude", s.peaks},
			{s.Band + " faintest", "faintest magnitude", s.faint},
		}
		for _, panel := range panels {
			h, err := plotter.NewHist(plotter.Values(panel.values), 0)
			if err != nil {
				return nil, err
			}
			h.FillColor = bandColor(s.Band)
			p := plot.New()
			p.Title.Text = panel.title
			p.X.Label.Text = panel.x
			p.Y.Label.Text = "count"
			p.Add(h)
			rows[i] = append(rows[i], p)
		}
	}
	return rows, nil
}

// SaveHistogramPlot writes the per-band histograms to a PNG file, one band per row.
func SaveHistogramPlot(filename string, summaries []BandSummary, wPx, hPx float64) error {
	rows, err := HistogramPlots(summaries)
	if err != nil {
		return err
	}

	canvas := newCanvas(wPx, hPx)
	tiles := draw.Tiles{
		Rows: len(rows),
		Cols: len(rows[0]),
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 4,
	}
	canvases := plot.Align(rows, tiles, draw.New(canvas))
	for i := range rows {
		for j, p := range rows[i] {
			p.Draw(canvases[i][j])
		}
	}
	return savePNG(filename, canvas)
}

func newCanvas(wPx, hPx float64) *vgimg.Canvas {
	const dpi = 96
	return vgimg.New(vg.Length(wPx)*vg.Inch/dpi, vg.Length(hPx)*vg.Inch/dpi)
}

func savePNG(filename string, canvas *vgimg.Canvas) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, canvas.Image())
}
