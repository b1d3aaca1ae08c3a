// Package cmm converts device colors to sRGB for display. It understands
// ICC matrix/TRC profiles (RGB and gray) and CIE L*a*b*; LUT-based profiles
// are rejected so that callers fall back to the device space with the same
// number of components.
package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/icc"
)

// D50 is the ICC profile connection space white point.
var D50 = [3]float64{0.9642, 1, 0.8249}

var ErrUnsupported = errors.New("cmm: unsupported profile")

// Profile is a parsed ICC profile.
type Profile struct {
	Class      string
	ColorSpace string
	PCS        string
	Channels   int
	White      [3]float64 // media white point, D50 when absent

	trc    [3]curve
	matrix [9]float64 // linear device -> XYZ, row major
	gray   bool
}

// Parse reads an ICC profile. Only matrix/TRC RGB and gray profiles are
// accepted.
func Parse(data []byte) (*Profile, error) {
	if len(data) < 132 || string(data[36:40]) != "acsp" {
		return nil, fmt.Errorf("cmm: not an ICC profile")
	}
	p := &Profile{
		Class:      string(data[12:16]),
		ColorSpace: string(data[16:20]),
		PCS:        string(data[20:24]),
		White:      D50,
	}
	tags, err := tagTable(data)
	if err != nil {
		return nil, err
	}
	if wt, ok := tags["wtpt"]; ok {
		if xyz, err := readXYZ(wt); err == nil {
			p.White = xyz
		}
	}

	switch p.ColorSpace {
	case "RGB ":
		p.Channels = 3
		for i, sig := range []string{"rTRC", "gTRC", "bTRC"} {
			if p.trc[i], err = readCurve(tags[sig]); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, sig, err)
			}
		}
		for i, sig := range []string{"rXYZ", "gXYZ", "bXYZ"} {
			xyz, err := readXYZ(tags[sig])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrUnsupported, sig, err)
			}
			// colorants are the matrix columns
			p.matrix[i], p.matrix[3+i], p.matrix[6+i] = xyz[0], xyz[1], xyz[2]
		}
	case "GRAY":
		p.Channels = 1
		p.gray = true
		if p.trc[0], err = readCurve(tags["kTRC"]); err != nil {
			return nil, fmt.Errorf("%w: kTRC: %v", ErrUnsupported, err)
		}
	default:
		return nil, fmt.Errorf("%w: color space %q", ErrUnsupported, p.ColorSpace)
	}
	if p.PCS != "XYZ " {
		return nil, fmt.Errorf("%w: PCS %q", ErrUnsupported, p.PCS)
	}
	return p, nil
}

// Components returns the number of color components of a profile, including
// profiles that Parse rejects.
func Components(data []byte) (int, error) {
	p, err := icc.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("cmm: %w", err)
	}
	return p.ColorSpace.NumComponents(), nil
}

// XYZ converts device components in [0,1] to PCS XYZ.
func (p *Profile) XYZ(c []float64) (x, y, z float64) {
	at := func(i int) float64 {
		if i < len(c) {
			return clamp01(c[i])
		}
		return 0
	}
	if p.gray {
		// gray profiles map to the luminance of the PCS white
		l := p.trc[0].eval(at(0))
		return l * D50[0], l * D50[1], l * D50[2]
	}
	r, g, b := p.trc[0].eval(at(0)), p.trc[1].eval(at(1)), p.trc[2].eval(at(2))
	m := &p.matrix
	return m[0]*r + m[1]*g + m[2]*b,
		m[3]*r + m[4]*g + m[5]*b,
		m[6]*r + m[7]*g + m[8]*b
}

// SRGB converts device components in [0,1] to gamma-encoded sRGB.
func (p *Profile) SRGB(c []float64) (r, g, b float64) {
	return XYZToSRGB(p.XYZ(c))
}

// LabToXYZ converts L*a*b* to D50 XYZ. The components are taken relative to
// the space's own white point; a von Kries adaptation of that white to D50
// leaves the D50 scaling alone, so the white point drops out.
func LabToXYZ(l, a, b float64) (x, y, z float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200
	inv := func(t float64) float64 {
		if t > 6.0/29 {
			return t * t * t
		}
		return 3 * (6.0 / 29) * (6.0 / 29) * (t - 4.0/29)
	}
	return inv(fx) * D50[0], inv(fy) * D50[1], inv(fz) * D50[2]
}

// XYZToSRGB converts D50 XYZ to gamma-encoded sRGB, clamped to [0,1]. The
// matrix includes the Bradford adaptation from D50 to D65.
func XYZToSRGB(x, y, z float64) (r, g, b float64) {
	lr := 3.1338561*x - 1.6168667*y - 0.4906146*z
	lg := -0.9787684*x + 1.9161415*y + 0.0334540*z
	lb := 0.0719453*x - 0.2289914*y + 1.4052427*z
	return encode(lr), encode(lg), encode(lb)
}

func encode(v float64) float64 {
	v = clamp01(v)
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

func tagTable(data []byte) (map[string][]byte, error) {
	n := int(binary.BigEndian.Uint32(data[128:132]))
	if n > (len(data)-132)/12 {
		return nil, fmt.Errorf("cmm: tag table out of range")
	}
	tags := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		e := data[132+12*i:]
		off := int(binary.BigEndian.Uint32(e[4:8]))
		size := int(binary.BigEndian.Uint32(e[8:12]))
		if off < 0 || size < 0 || off > len(data) || size > len(data)-off {
			return nil, fmt.Errorf("cmm: tag %q out of range", e[:4])
		}
		tags[string(e[:4])] = data[off : off+size]
	}
	return tags, nil
}

func s15Fixed16(b []byte) float64 {
	return float64(int32(binary.BigEndian.Uint32(b))) / 65536
}

func readXYZ(tag []byte) ([3]float64, error) {
	if len(tag) < 20 || string(tag[:4]) != "XYZ " {
		return [3]float64{}, fmt.Errorf("not an XYZ tag")
	}
	return [3]float64{s15Fixed16(tag[8:]), s15Fixed16(tag[12:]), s15Fixed16(tag[16:])}, nil
}
