package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/you112ef/Sky-CASA/internal/casa/l4motility"
	"github.com/you112ef/Sky-CASA/internal/casa/pipeline"
)

// Default PNG size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 8 * vg.Inch
)

var classColors = map[l4motility.Class]color.RGBA{
	l4motility.ClassProgressive:    {R: 0x1f, G: 0x9e, B: 0x89, A: 0xff},
	l4motility.ClassNonProgressive: {R: 0xf2, G: 0x8e, B: 0x2b, A: 0xff},
	l4motility.ClassImmotile:       {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
}

var unclassifiedColor = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}

func colorFor(c l4motility.Class) color.RGBA {
	if rgba, ok := classColors[c]; ok {
		return rgba
	}
	return unclassifiedColor
}

var classOrder = []l4motility.Class{
	l4motility.ClassProgressive,
	l4motility.ClassNonProgressive,
	l4motility.ClassImmotile,
}

// legendOrder adds the unclassified bucket for tracks without kinematics.
var legendOrder = []l4motility.Class{
	l4motility.ClassProgressive,
	l4motility.ClassNonProgressive,
	l4motility.ClassImmotile,
	"",
}

func classLabel(c l4motility.Class) string {
	if c == "" {
		return "Unclassified"
	}
	return c.Label()
}

// TrajectoryPlot builds a plot of every track in res, one line per track
// coloured by class. Y grows downwards as in image coordinates.
func TrajectoryPlot(res *pipeline.AnalysisResult) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Trajectories"
	if res.SampleID != "" {
		p.Title.Text = fmt.Sprintf("Trajectories - %s", res.SampleID)
	}
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px, down)"
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	inLegend := map[l4motility.Class]bool{}
	for _, tr := range res.Tracks {
		pts := make(plotter.XYs, len(tr.Track.Points))
		for i, pt := range tr.Track.Points {
			pts[i] = plotter.XY{X: pt.X, Y: -pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", tr.Track.TrackID, err)
		}
		line.Color = colorFor(tr.Class)
		line.Width = vg.Points(1)
		p.Add(line)

		if !inLegend[tr.Class] {
			inLegend[tr.Class] = true
			p.Legend.Add(classLabel(tr.Class), line)
		}
	}
	return p, nil
}

// WriteTrajectoryPNG renders the trajectory plot of res as PNG to w.
func WriteTrajectoryPNG(w io.Writer, res *pipeline.AnalysisResult) error {
	p, err := TrajectoryPlot(res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// SaveTrajectoryPNG writes the trajectory plot of res to path. The image
// format follows the file extension.
func SaveTrajectoryPNG(path string, res *pipeline.AnalysisResult) error {
	p, err := TrajectoryPlot(res)
	if err != nil {
		return err
	}
	if err := p.Save(DefaultWidth, DefaultHeight, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
