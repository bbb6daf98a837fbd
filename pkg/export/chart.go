package export

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"github.com/natefinch/atomic"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/bouwkansen/pkg/metrics"
	"github.com/vanderheijden86/bouwkansen/pkg/query"
)

// ChartOptions controls category chart export.
type ChartOptions struct {
	Path     string                // Output path; format inferred from extension when Format empty
	Format   Format                // FormatSVG or FormatPNG
	Title    string                // Rendered in the header block
	Subtitle string                // Optional second header line
	Counts   []query.CategoryCount // Bars, drawn in the given order
}

var (
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	colorText     = color.RGBA{0x11, 0x18, 0x27, 0xff}
	colorSubtle   = color.RGBA{0x4b, 0x55, 0x63, 0xff}
	colorTrack    = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
)

// categoryColors assigns a stable color per category id.
var categoryColors = map[string]color.RGBA{
	"wegenbouw":            {0x25, 0x63, 0xeb, 0xff},
	"riolering":            {0x06, 0xb6, 0xd4, 0xff},
	"scholenbouw":          {0xf5, 0x9e, 0x0b, 0xff},
	"sport":                {0x10, 0xb9, 0x81, 0xff},
	"cultuur":              {0x8b, 0x5c, 0xf6, 0xff},
	"gebouwen":             {0x64, 0x74, 0x8b, 0xff},
	"verlichting":          {0xea, 0xb3, 0x08, 0xff},
	"groen":                {0x22, 0xc5, 0x5e, 0xff},
	"ruimtelijke-ordening": {0xec, 0x48, 0x99, 0xff},
	"zorg":                 {0xef, 0x44, 0x44, 0xff},
	"overige":              {0x9c, 0xa3, 0xaf, 0xff},
}

var colorFallback = color.RGBA{0x3b, 0x82, 0xf6, 0xff}

// CategoryColor returns the chart color of a category.
func CategoryColor(id string) color.RGBA {
	if c, ok := categoryColors[id]; ok {
		return c
	}
	return colorFallback
}

const (
	chartWidth  = 960
	chartHeader = 96.0
	chartRowH   = 30.0
	chartLabelW = 330.0
	chartValueW = 150.0
	chartMargin = 24.0
)

type chartBar struct {
	Label string
	Value string
	Frac  float64
	Color color.RGBA
	Y     float64
}

type chartLayout struct {
	Width    int
	Height   int
	Title    string
	Subtitle string
	Bars     []chartBar
}

// SaveCategoryChart renders a horizontal bar chart of category amounts as
// SVG or PNG.
func SaveCategoryChart(opts ChartOptions) error {
	defer metrics.Timer(metrics.Export)()

	if len(opts.Counts) == 0 {
		return fmt.Errorf("no categories to chart")
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format := opts.Format
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".png":
			format = FormatPNG
		default:
			format = FormatSVG
		}
	}
	if format != FormatSVG && format != FormatPNG {
		return fmt.Errorf("unsupported chart format %q (want svg or png)", format)
	}
	if err := ensureParent(opts.Path); err != nil {
		return err
	}

	layout := buildChartLayout(opts)
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := renderChartPNG(&buf, layout); err != nil {
			return fmt.Errorf("render png: %w", err)
		}
	default:
		renderChartSVG(&buf, layout)
	}
	return atomic.WriteFile(opts.Path, &buf)
}

func buildChartLayout(opts ChartOptions) chartLayout {
	max := 0.0
	for _, c := range opts.Counts {
		if c.Amount > max {
			max = c.Amount
		}
	}
	l := chartLayout{
		Width:    chartWidth,
		Height:   int(chartHeader + chartMargin + float64(len(opts.Counts))*chartRowH + chartMargin),
		Title:    opts.Title,
		Subtitle: opts.Subtitle,
	}
	if l.Title == "" {
		l.Title = "Investeringen per categorie"
	}
	for i, c := range opts.Counts {
		frac := 0.0
		if max > 0 {
			frac = c.Amount / max
		}
		l.Bars = append(l.Bars, chartBar{
			Label: truncate(fmt.Sprintf("%s (%d)", c.Label, c.Count), 44),
			Value: FormatMillions(c.Amount),
			Frac:  frac,
			Color: CategoryColor(c.ID),
			Y:     chartHeader + chartMargin + float64(i)*chartRowH,
		})
	}
	return l
}

func barTrackWidth(l chartLayout) float64 {
	return float64(l.Width) - 2*chartMargin - chartLabelW - chartValueW
}

func renderChartPNG(w io.Writer, l chartLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, chartHeader-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, 32, 40, 0, 0.5)
	if l.Subtitle != "" {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(l.Subtitle, 32, 60, 0, 0.5)
	}

	track := barTrackWidth(l)
	x0 := chartMargin + chartLabelW
	for _, b := range l.Bars {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(b.Label, chartMargin, b.Y+chartRowH/2-3, 0, 0.5)

		dc.SetColor(colorTrack)
		dc.DrawRoundedRectangle(x0, b.Y+4, track, chartRowH-14, 4)
		dc.Fill()
		if bw := track * b.Frac; bw > 0 {
			dc.SetColor(b.Color)
			dc.DrawRoundedRectangle(x0, b.Y+4, bw, chartRowH-14, 4)
			dc.Fill()
		}

		dc.SetColor(colorText)
		dc.DrawStringAnchored(b.Value, x0+track+12, b.Y+chartRowH/2-3, 0, 0.5)
	}
	return png.Encode(w, dc.Image())
}

func renderChartSVG(w io.Writer, l chartLayout) {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(chartHeader-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 46, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:sans-serif;font-weight:bold", css(colorText)))
	if l.Subtitle != "" {
		canvas.Text(32, 68, l.Subtitle, fmt.Sprintf("fill:%s;font-size:13px;font-family:sans-serif", css(colorSubtle)))
	}

	track := int(barTrackWidth(l))
	x0 := int(chartMargin + chartLabelW)
	for _, b := range l.Bars {
		y := int(b.Y)
		canvas.Text(int(chartMargin), y+19, b.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif", css(colorSubtle)))
		canvas.Roundrect(x0, y+4, track, int(chartRowH-14), 4, 4, fmt.Sprintf("fill:%s", css(colorTrack)))
		if bw := int(float64(track) * b.Frac); bw > 0 {
			canvas.Roundrect(x0, y+4, bw, int(chartRowH-14), 4, 4, fmt.Sprintf("fill:%s", css(b.Color)))
		}
		canvas.Text(x0+track+12, y+19, b.Value, fmt.Sprintf("fill:%s;font-size:12px;font-family:sans-serif", css(colorText)))
	}
	canvas.End()
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// CategoryHex returns CategoryColor(id) as #rrggbb.
func CategoryHex(id string) string {
	return css(CategoryColor(id))
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
