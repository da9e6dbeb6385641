package render

import (
	"fmt"
	"math"
	"strings"

	"market-surplus/models"
)

const (
	chartWidth  = 800
	chartHeight = 600
	marginLeft  = 70
	marginRight = 30
	marginTop   = 40
	marginBot   = 60
)

var seriesColors = map[string]string{
	"Demand": "#1f5fbf",
	"Supply": "#c8322b",
}

// frame maps market coordinates to SVG pixels.
type frame struct {
	qMin, qMax, pMax float64
}

func (f frame) x(q float64) float64 {
	w := float64(chartWidth - marginLeft - marginRight)
	return marginLeft + (q-f.qMin)/(f.qMax-f.qMin)*w
}

// y clamps to the plot area so lines that dip below zero price stay inside.
func (f frame) y(p float64) float64 {
	h := float64(chartHeight - marginTop - marginBot)
	p = math.Max(0, math.Min(p, f.pMax))
	return float64(chartHeight-marginBot) - p/f.pMax*h
}

// SVG draws the fitted lines, the equilibrium marker and both surplus areas.
func SVG(bundle *models.ResultBundle, series []models.PlotSeries) ([]byte, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("render: %s has no lines to draw", bundle.Dataset)
	}

	f := newFrame(bundle, series)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`+"\n",
		chartWidth, chartHeight, chartWidth, chartHeight)
	sb.WriteString(`<rect width="100%" height="100%" fill="#ffffff"/>` + "\n")
	fmt.Fprintf(&sb, `<text x="%d" y="24" font-size="16" font-weight="bold">%s</text>`+"\n", marginLeft, escape(bundle.Dataset))

	if eq := bundle.Equilibrium; eq != nil && bundle.Demand != nil && bundle.Supply != nil {
		writeSurplusAreas(&sb, f, *bundle.Demand, *bundle.Supply, *eq)
	}

	writeAxes(&sb, f)

	for i, s := range series {
		color, ok := seriesColors[s.Label]
		if !ok {
			color = "#444444"
		}
		pts := make([]string, 0, len(s.Points))
		for _, p := range s.Points {
			pts = append(pts, fmt.Sprintf("%.2f,%.2f", f.x(p.Quantity), f.y(p.Price)))
		}
		fmt.Fprintf(&sb, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`+"\n", color, strings.Join(pts, " "))

		ly := marginTop + 10 + i*18
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="2"/>`+"\n",
			chartWidth-170, ly, chartWidth-145, ly, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%d">%s Curve</text>`+"\n", chartWidth-138, ly+4, escape(s.Label))
	}

	if eq := bundle.Equilibrium; eq != nil {
		ex, ey := f.x(eq.Quantity), f.y(eq.Price)
		fmt.Fprintf(&sb, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%d" stroke="#888" stroke-dasharray="4 3"/>`+"\n", ex, ey, ex, chartHeight-marginBot)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.2f" x2="%.2f" y2="%.2f" stroke="#888" stroke-dasharray="4 3"/>`+"\n", marginLeft, ey, ex, ey)
		fmt.Fprintf(&sb, `<circle cx="%.2f" cy="%.2f" r="5" fill="#2a9d3a"/>`+"\n", ex, ey)
		fmt.Fprintf(&sb, `<text x="%.2f" y="%.2f">Equilibrium (%.2f, %.2f)</text>`+"\n", ex+8, ey-8, eq.Quantity, eq.Price)
	}

	sb.WriteString("</svg>\n")
	return []byte(sb.String()), nil
}

func newFrame(bundle *models.ResultBundle, series []models.PlotSeries) frame {
	f := frame{qMin: math.Inf(1), qMax: math.Inf(-1)}
	for _, s := range series {
		for _, p := range s.Points {
			f.qMin = math.Min(f.qMin, p.Quantity)
			f.qMax = math.Max(f.qMax, p.Quantity)
			f.pMax = math.Max(f.pMax, p.Price)
		}
	}
	if eq := bundle.Equilibrium; eq != nil {
		f.pMax = math.Max(f.pMax, eq.Price)
	}
	if f.qMax <= f.qMin {
		f.qMax = f.qMin + 1
	}
	if f.pMax <= 0 {
		f.pMax = 1
	}
	f.pMax *= 1.1
	return f
}

func writeSurplusAreas(sb *strings.Builder, f frame, demand, supply models.LineModel, eq models.EquilibriumPoint) {
	x0, xq, yp := f.x(0), f.x(eq.Quantity), f.y(eq.Price)

	fmt.Fprintf(sb, `<polygon fill="#1f5fbf" fill-opacity="0.2" points="%.2f,%.2f %.2f,%.2f %.2f,%.2f"><title>Consumer surplus</title></polygon>`+"\n",
		x0, f.y(demand.PriceAt(0)), xq, yp, x0, yp)
	fmt.Fprintf(sb, `<polygon fill="#c8322b" fill-opacity="0.2" points="%.2f,%.2f %.2f,%.2f %.2f,%.2f"><title>Producer surplus</title></polygon>`+"\n",
		x0, yp, xq, yp, x0, f.y(supply.PriceAt(0)))
}

func writeAxes(sb *strings.Builder, f frame) {
	left, bottom := marginLeft, chartHeight-marginBot
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#000"/>`+"\n", left, bottom, chartWidth-marginRight, bottom)
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#000"/>`+"\n", left, bottom, left, marginTop)

	const ticks = 5
	for i := 0; i <= ticks; i++ {
		q := f.qMin + (f.qMax-f.qMin)*float64(i)/ticks
		x := f.x(q)
		fmt.Fprintf(sb, `<text x="%.2f" y="%d" text-anchor="middle">%.4g</text>`+"\n", x, bottom+18, q)

		p := f.pMax * float64(i) / ticks
		y := f.y(p)
		fmt.Fprintf(sb, `<text x="%d" y="%.2f" text-anchor="end">%.4g</text>`+"\n", left-6, y+4, p)
	}

	fmt.Fprintf(sb, `<text x="%d" y="%d" text-anchor="middle">Quantity</text>`+"\n", (left+chartWidth-marginRight)/2, chartHeight-16)
	fmt.Fprintf(sb, `<text x="18" y="%d" text-anchor="middle" transform="rotate(-90 18 %d)">Price</text>`+"\n",
		(marginTop+bottom)/2, (marginTop+bottom)/2)
}

var svgEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string {
	return svgEscaper.Replace(s)
}
