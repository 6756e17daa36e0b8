package tracker

import (
	"log"

	"github.com/fogleman/gg"

	"github.com/samuelfneumann/goa2c/timestep"
)

// Curve tracks the episodic return in an experiment and renders a
// learning curve image when saved. Episode number runs along the
// horizontal axis and episodic return along the vertical axis.
type Curve struct {
	returns *Return

	filename      string
	width, height int
}

// NewCurve creates and returns a new *Curve Tracker that renders a
// width x height PNG learning curve to filename
func NewCurve(filename string, width, height int) *Curve {
	if width < 1 || height < 1 {
		panic("newCurve: image dimensions must be positive")
	}

	return &Curve{
		returns:  NewReturn(filename),
		filename: filename,
		width:    width,
		height:   height,
	}
}

// Track tracks the reward seen on a timestep
func (c *Curve) Track(t timestep.TimeStep) {
	c.returns.Track(t)
}

// Save renders the learning curve of the tracked episodic returns
// and writes it to disk as a PNG image
func (c *Curve) Save() {
	episodeReturns := c.returns.Returns()

	dc := gg.NewContext(c.width, c.height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if len(episodeReturns) == 0 {
		if err := dc.SavePNG(c.filename); err != nil {
			log.Fatalf("could not save learning curve: %v", err)
		}
		return
	}

	min, max := episodeReturns[0], episodeReturns[0]
	for _, episodeReturn := range episodeReturns {
		if episodeReturn < min {
			min = episodeReturn
		}
		if episodeReturn > max {
			max = episodeReturn
		}
	}
	if max == min {
		// Degenerate vertical range, centre the flat curve
		max += 1.0
		min -= 1.0
	}

	margin := 0.05 * float64(c.height)
	plotWidth := float64(c.width) - 2*margin
	plotHeight := float64(c.height) - 2*margin

	toPixel := func(episode int, episodeReturn float64) (float64, float64) {
		x := margin
		if len(episodeReturns) > 1 {
			x += plotWidth * float64(episode) /
				float64(len(episodeReturns)-1)
		}
		y := margin + plotHeight*(max-episodeReturn)/(max-min)
		return x, y
	}

	// Axes
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(2.0)
	dc.DrawLine(margin, margin, margin, margin+plotHeight)
	dc.DrawLine(margin, margin+plotHeight, margin+plotWidth,
		margin+plotHeight)
	dc.Stroke()

	// Learning curve
	dc.ClearPath()
	dc.SetRGB(0.12, 0.47, 0.71)
	dc.SetLineWidth(1.5)
	startX, startY := toPixel(0, episodeReturns[0])
	dc.MoveTo(startX, startY)
	for i, episodeReturn := range episodeReturns[1:] {
		x, y := toPixel(i+1, episodeReturn)
		dc.LineTo(x, y)
	}
	dc.Stroke()

	if err := dc.SavePNG(c.filename); err != nil {
		log.Fatalf("could not save learning curve: %v", err)
	}
}
