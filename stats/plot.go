package stats

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SavePlot writes a plot of the one-way delay of every delivered packet over
// its send time to path. The file extension selects the image format.
func (c *Collector) SavePlot(title, path string) error {
	if len(c.samples) == 0 {
		return errors.New("no delay samples to plot")
	}
	return savePlot(title, "One-way delay (ms)", path, c.delayPoints())
}

func (c *Collector) delayPoints() plotter.XYs {
	origin := c.origin()
	pts := make(plotter.XYs, len(c.samples))
	for i, s := range c.samples {
		pts[i].X = s.sendTime.Sub(origin).Seconds()
		pts[i].Y = float64(s.delay.Microseconds()) / 1000
	}
	return pts
}

// SaveQueuePlot writes a plot of the recorded queue lengths over time to
// path.
func (c *Collector) SaveQueuePlot(title, path string) error {
	if len(c.queue) == 0 {
		return errors.New("no queue samples to plot")
	}
	return savePlot(title, "Queue length (packets)", path, c.queuePoints())
}

func (c *Collector) queuePoints() plotter.XYs {
	origin := c.origin()
	pts := make(plotter.XYs, len(c.queue))
	for i, q := range c.queue {
		pts[i].X = q.at.Sub(origin).Seconds()
		pts[i].Y = float64(q.length)
	}
	return pts
}

// origin is the earliest time of any sample.
func (c *Collector) origin() time.Time {
	var origin time.Time
	if c.started {
		origin = c.start
	}
	if len(c.queue) > 0 && (origin.IsZero() || c.queue[0].at.Before(origin)) {
		origin = c.queue[0].at
	}
	return origin
}

func savePlot(title, yLabel, path string, pts plotter.XYs) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = yLabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	p.Add(line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
