package api

import (
	"fmt"

	"github.com/pbaille/sentimen/internal/analyzer"
)

// chart geometry, in SVG user units
const (
	chartWidth    = 480.0
	chartHeight   = 300.0
	chartTop      = 30.0
	chartBottom   = 40.0
	chartBarRatio = 0.6
)

type chartBar struct {
	X, Y, Width, Height float64
	CenterX             float64
	ValueY              float64
	LabelY              float64
	Label               string
	Percent             string
	Color               string
}

type gridLine struct {
	Y     float64
	Label string
}

type barChart struct {
	Width, Height float64
	Baseline      float64
	Bars          []chartBar
	Grid          []gridLine
}

// newBarChart lays out one bar per class in classifier order, scaled to [0, 1]
func newBarChart(breakdown []analyzer.ClassProbability) *barChart {
	if len(breakdown) == 0 {
		return nil
	}

	plotHeight := chartHeight - chartTop - chartBottom
	baseline := chartTop + plotHeight
	slot := chartWidth / float64(len(breakdown))
	barWidth := slot * chartBarRatio

	c := &barChart{Width: chartWidth, Height: chartHeight, Baseline: baseline}

	for _, tick := range []float64{0, 0.25, 0.5, 0.75, 1} {
		c.Grid = append(c.Grid, gridLine{
			Y:     baseline - tick*plotHeight,
			Label: fmt.Sprintf("%.0f%%", tick*100),
		})
	}

	for i, b := range breakdown {
		p := clamp01(b.Probability)
		h := p * plotHeight
		x := float64(i)*slot + (slot-barWidth)/2
		c.Bars = append(c.Bars, chartBar{
			X:       x,
			Y:       baseline - h,
			Width:   barWidth,
			Height:  h,
			CenterX: x + barWidth/2,
			ValueY:  baseline - h - 6,
			LabelY:  baseline + 20,
			Label:   b.Label,
			Percent: b.Percent,
			Color:   b.Color,
		})
	}

	return c
}

func clamp01(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
