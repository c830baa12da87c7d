package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"CollabBoard/internal/render"
	"CollabBoard/internal/state"
)

// pxToPt converts 96 dpi pixels to PDF points.
const pxToPt = 72.0 / 96.0

func newPage(w, h float64) *gofpdf.Fpdf {
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	return p
}

// WritePDF writes a one-page PDF holding img, with the page sized to the
// image.
func WritePDF(w io.Writer, img image.Image) error {
	var buf bytes.Buffer
	if err := PNG(&buf, img); err != nil {
		return err
	}
	b := img.Bounds()
	pw, ph := float64(b.Dx())*pxToPt, float64(b.Dy())*pxToPt
	p := newPage(pw, ph)
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	p.RegisterImageOptionsReader("board", opts, &buf)
	p.ImageOptions("board", 0, 0, pw, ph, false, opts, 0, "")
	if err := p.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

// WriteVectorPDF draws the elements of scene as PDF paths using gen for the
// sketch geometry. Text is set in Helvetica.
func WriteVectorPDF(w io.Writer, scene render.Scene, gen render.Generator) error {
	elements := scene.GetAll()
	ext, ok := Extent(elements)
	if !ok {
		return ErrEmptyBoard
	}
	p := newPage(ext.W*pxToPt, ext.H*pxToPt)
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")
	pt := func(q state.Point) gofpdf.PointType {
		return gofpdf.PointType{X: (q.X - ext.X) * pxToPt, Y: (q.Y - ext.Y) * pxToPt}
	}

	for _, el := range elements {
		if el.Type == state.Text {
			drawPDFText(p, el, ext)
			continue
		}
		d, err := gen.Generate(el)
		if err != nil {
			continue
		}
		for _, op := range d.Ops {
			if len(op.Points) < 2 {
				continue
			}
			p.SetAlpha(float64(op.Color.A)/255, "Normal")
			pts := make([]gofpdf.PointType, len(op.Points))
			for i, q := range op.Points {
				pts[i] = pt(q)
			}
			switch op.Kind {
			case render.OpFill:
				p.SetFillColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				p.Polygon(pts, "F")
			case render.OpStroke:
				p.SetDrawColor(int(op.Color.R), int(op.Color.G), int(op.Color.B))
				p.SetLineWidth(op.Width * pxToPt)
				if op.Closed {
					p.Polygon(pts, "D")
					continue
				}
				for i := 1; i < len(pts); i++ {
					p.Line(pts[i-1].X, pts[i-1].Y, pts[i].X, pts[i].Y)
				}
			}
		}
	}
	p.SetAlpha(1, "Normal")
	if err := p.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func drawPDFText(p *gofpdf.Fpdf, el state.Element, ext state.Rect) {
	size := el.FontSize
	if size <= 0 {
		size = 20
	}
	col, ok := render.ParseColor(el.StrokeColor)
	if !ok {
		col.A = 255
	}
	p.SetAlpha(el.Opacity*float64(col.A)/255, "Normal")
	p.SetTextColor(int(col.R), int(col.G), int(col.B))
	p.SetFont("Helvetica", "", size*pxToPt)
	tr := p.UnicodeTranslatorFromDescriptor("")
	lineHeight := size * render.TextLineHeight
	for i, line := range strings.Split(el.Text, "\n") {
		x := (el.X - ext.X) * pxToPt
		y := (el.Y - ext.Y + size + float64(i)*lineHeight) * pxToPt
		p.Text(x, y, tr(line))
	}
}
