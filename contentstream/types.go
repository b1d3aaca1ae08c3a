package contentstream

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// Fills reports whether glyphs are painted with the fill color.
func (m TextRenderMode) Fills() bool {
	return m == TextFill || m == TextFillStroke || m == TextFillClip || m == TextFillStrokeClip
}

// Strokes reports whether glyph outlines are stroked.
func (m TextRenderMode) Strokes() bool {
	return m == TextStroke || m == TextFillStroke || m == TextStrokeClip || m == TextFillStrokeClip
}

// LineCap represents the line cap style (J operator).
type LineCap int

const (
	LineCapButt LineCap = iota
	LineCapRound
	LineCapSquare
)

// LineJoin represents the line join style (j operator).
type LineJoin int

const (
	LineJoinMiter LineJoin = iota
	LineJoinRound
	LineJoinBevel
)

// Color is a color value in a named color space. Space is the operand of
// cs/CS (a device family or a resource name); Components are the sc/scn
// operands.
type Color struct {
	Space      string
	Components []float64
	Pattern    string
}

func DeviceGray(v float64) Color       { return Color{Space: "DeviceGray", Components: []float64{v}} }
func DeviceRGB(r, g, b float64) Color  { return Color{Space: "DeviceRGB", Components: []float64{r, g, b}} }
func DeviceCMYK(c, m, y, k float64) Color {
	return Color{Space: "DeviceCMYK", Components: []float64{c, m, y, k}}
}

// initialColor returns the default color selected by cs/CS.
func initialColor(space string) Color {
	switch space {
	case "DeviceRGB", "CalRGB", "Lab":
		return DeviceRGB(0, 0, 0)
	case "DeviceCMYK":
		return DeviceCMYK(0, 0, 0, 1)
	case "DeviceGray", "CalGray":
		return DeviceGray(0)
	}
	return Color{Space: space}
}
