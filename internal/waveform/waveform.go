// Package waveform draws the live oscilloscope trace.
package waveform

// Surface is the minimal 2D path API the renderer needs.
type Surface interface {
	Size() (width, height float64)
	Clear()
	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Stroke()
}

type Renderer struct{}

// Draw clears the surface and strokes one path through data. Each byte d
// maps to y = (d/128) * height/2, so 128 sits on the centre line. The path
// closes at the right edge on the centre line.
func (Renderer) Draw(s Surface, data []byte) {
	w, h := s.Size()
	s.Clear()
	s.BeginPath()
	if len(data) > 0 {
		slice := w / float64(len(data))
		x := 0.0
		for i, d := range data {
			v := float64(d) / 128
			y := v * h / 2
			if i == 0 {
				s.MoveTo(x, y)
			} else {
				s.LineTo(x, y)
			}
			x += slice
		}
	} else {
		s.MoveTo(0, h/2)
	}
	s.LineTo(w, h/2)
	s.Stroke()
}

