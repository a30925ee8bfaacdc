package lightcurve

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gonum.org/v1/plot"
	_ "gonum.org/v1/plot/font/liberation"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// BandColors gives every band a fixed line color so that panels and plots agree.
var BandColors = [NumBands]color.RGBA{
	{R: 120, G: 0, B: 200, A: 255}, // u
	{R: 0, G: 150, B: 60, A: 255},  // g
	{R: 220, G: 30, B: 30, A: 255}, // r
	{R: 230, G: 120, B: 0, A: 255}, // i
	{R: 120, G: 60, B: 20, A: 255}, // z
	{R: 90, G: 90, B: 90, A: 255},  // y
	{R: 0, G: 80, B: 220, A: 255},  // J
	{R: 0, G: 170, B: 200, A: 255}, // H
	{R: 200, G: 0, B: 140, A: 255}, // K
}

// StepTicks is a custom tick marker for plots with fixed step intervals.
type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	start := math.Ceil(min/t.Step) * t.Step
	for v := start; v <= max; v += t.Step {
		ticks = append(ticks, plot.Tick{
			Value: v,
			Label: fmt.Sprintf(t.Format, v),
		})
	}
	return ticks
}

// NewMagnitudePlot returns a plot with Liberation fonts, a grid, whole-day time ticks
// and an inverted magnitude axis (brighter is up).
func NewMagnitudePlot(title string, tIni, tMax float64) *plot.Plot {
	p := plot.New()

	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = title
	p.X.Label.Text = "time since merger (days)"
	p.Y.Label.Text = "absolute magnitude (AB)"
	p.X.Min = tIni
	p.X.Max = tMax
	p.X.Tick.Marker = StepTicks{Step: 1, Format: "%.0f"}
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	return p
}

// addBand draws one band as a line and adds it to the legend.
func addBand(p *plot.Plot, name string, col color.Color, time, mags []float64) error {
	pts := make(plotter.XYs, len(time))
	for i := range time {
		pts[i].X = time[i]
		pts[i].Y = mags[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = col
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

// PlotCurve renders the optical bands (u, g, r, i, z) and the infrared bands (J, H, K)
// side by side. Returns the plot as an image.Image.
func PlotCurve(c *Curve, title string, wPx, hPx float64) (image.Image, error) {
	if len(c.Time) == 0 {
		return nil, fmt.Errorf("empty light curve")
	}
	tIni := c.Time[0]
	tMax := c.Time[len(c.Time)-1]

	optical := NewMagnitudePlot(title+" (optical)", tIni, tMax)
	infrared := NewMagnitudePlot(title+" (infrared)", tIni, tMax)

	for b := 0; b <= 4; b++ {
		if err := addBand(optical, BandNames[b], BandColors[b], c.Time, c.Mags[b]); err != nil {
			return nil, err
		}
	}
	for b := 6; b < NumBands; b++ {
		if err := addBand(infrared, BandNames[b], BandColors[b], c.Time, c.Mags[b]); err != nil {
			return nil, err
		}
	}

	const dpi = 96
	width := vg.Length(wPx) * vg.Inch / dpi
	height := vg.Length(hPx) * vg.Inch / dpi

	canvas := vgimg.New(width, height)
	dc := vgdraw.New(canvas)
	tiles := vgdraw.Tiles{
		Rows: 1,
		Cols: 2,
		PadX: vg.Millimeter * 4,
		PadY: vg.Millimeter * 2,
	}
	plots := [][]*plot.Plot{{optical, infrared}}
	canvases := plot.Align(plots, tiles, dc)
	optical.Draw(canvases[0][0])
	infrared.Draw(canvases[0][1])

	return canvas.Image(), nil
}

// SaveCurvePlot creates and saves a light curve plot to a PNG file.
func SaveCurvePlot(filename string, c *Curve, title string, wPx, hPx float64) (err error) {
	img, err := PlotCurve(c, title, wPx, hPx)
	if err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return png.Encode(f, img)
}
