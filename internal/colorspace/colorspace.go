// Package colorspace implements sRGB to CIE-LAB conversion and the
// CIEDE2000 perceptual color-difference formula.
//
// Everything downstream of it (cell sampling, tile matching, tinting)
// compares colors through these functions, so the conversions follow the
// CIE definitions exactly: D65 white point, the standard sRGB matrix and
// the cube-root/linear piecewise transform.
package colorspace

import "math"

// Lab is a color in the CIE-LAB color space (D65 white point).
//
// L is lightness in [0, 100]. A runs green (negative) to red (positive),
// B runs blue (negative) to yellow (positive); both are roughly in
// [-128, 127] for colors reachable from sRGB.
//
// Lab is a plain value type: all functions in this package are pure and
// safe for concurrent use.
type Lab struct {
	L float64 `json:"l"`
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// D65 reference white.
const (
	refX = 95.047
	refY = 100.0
	refZ = 108.883
)

// CIE standard constants for the XYZ<->Lab piecewise transform.
const (
	epsilon = 0.008856
	kappa   = 903.3
)

// RGBToLab converts an 8-bit sRGB triple to Lab.
//
// The conversion applies sRGB gamma expansion, the standard sRGB->XYZ
// matrix, then the XYZ->Lab transform against the D65 white point.
func RGBToLab(r, g, b uint8) Lab {
	rl := srgbToLinear(float64(r) / 255.0)
	gl := srgbToLinear(float64(g) / 255.0)
	bl := srgbToLinear(float64(b) / 255.0)

	// Linear RGB -> XYZ, scaled so Y is in [0, 100].
	x := (rl*0.4124564 + gl*0.3575761 + bl*0.1804375) * 100.0
	y := (rl*0.2126729 + gl*0.7151522 + bl*0.0721750) * 100.0
	z := (rl*0.0193339 + gl*0.1191920 + bl*0.9503041) * 100.0

	fx := pivotXYZ(x / refX)
	fy := pivotXYZ(y / refY)
	fz := pivotXYZ(z / refZ)

	return Lab{
		L: 116.0*fy - 16.0,
		A: 500.0 * (fx - fy),
		B: 200.0 * (fy - fz),
	}
}

// LabToRGB converts a Lab color back to 8-bit sRGB, clamping each
// channel to [0, 255]. For colors produced by RGBToLab the roundtrip
// reconstructs the original triple within one unit per channel.
func LabToRGB(c Lab) (r, g, b uint8) {
	fy := (c.L + 16.0) / 116.0
	fx := fy + c.A/500.0
	fz := fy - c.B/200.0

	x := unpivotXYZ(fx) * refX
	z := unpivotXYZ(fz) * refZ

	// The inverse of L uses the piecewise form directly on L, not on fy.
	var y float64
	if c.L > kappa*epsilon {
		y = math.Pow(fy, 3) * refY
	} else {
		y = c.L / kappa * refY
	}

	x /= 100.0
	y /= 100.0
	z /= 100.0

	rl := x*3.2404542 + y*-1.5371385 + z*-0.4985314
	gl := x*-0.9692660 + y*1.8760108 + z*0.0415560
	bl := x*0.0556434 + y*-0.2040259 + z*1.0572252

	return clampChannel(linearToSRGB(rl)),
		clampChannel(linearToSRGB(gl)),
		clampChannel(linearToSRGB(bl))
}

// Blend linearly interpolates between two Lab colors.
// ratio 0 returns a, ratio 1 returns b.
func Blend(a, b Lab, ratio float64) Lab {
	return Lab{
		L: a.L + (b.L-a.L)*ratio,
		A: a.A + (b.A-a.A)*ratio,
		B: a.B + (b.B-a.B)*ratio,
	}
}

// DeltaE2000 computes the CIEDE2000 color difference between two Lab
// colors with the parametric factors kL = kC = kH = 1.
//
// The implementation follows the complete formula including the chroma
// compensation term G, the weighting functions SL, SC, SH and the
// rotation term RT. DeltaE2000(c, c) is 0 and the function is symmetric
// in its arguments within floating-point tolerance.
func DeltaE2000(c1, c2 Lab) float64 {
	const deg2rad = math.Pi / 180.0

	chroma1 := math.Sqrt(c1.A*c1.A + c1.B*c1.B)
	chroma2 := math.Sqrt(c2.A*c2.A + c2.B*c2.B)
	cBar := (chroma1 + chroma2) / 2.0

	cBar7 := math.Pow(cBar, 7)
	g := 0.5 * (1.0 - math.Sqrt(cBar7/(cBar7+math.Pow(25.0, 7))))

	a1p := (1.0 + g) * c1.A
	a2p := (1.0 + g) * c2.A

	c1p := math.Sqrt(a1p*a1p + c1.B*c1.B)
	c2p := math.Sqrt(a2p*a2p + c2.B*c2.B)

	h1p := hueAngle(c1.B, a1p)
	h2p := hueAngle(c2.B, a2p)

	dLp := c2.L - c1.L
	dCp := c2p - c1p

	var dhp float64
	switch {
	case c1p*c2p == 0:
		dhp = 0
	case math.Abs(h2p-h1p) <= 180:
		dhp = h2p - h1p
	case h2p-h1p > 180:
		dhp = h2p - h1p - 360
	default:
		dhp = h2p - h1p + 360
	}
	dHp := 2.0 * math.Sqrt(c1p*c2p) * math.Sin(dhp/2.0*deg2rad)

	lBar := (c1.L + c2.L) / 2.0
	cBarP := (c1p + c2p) / 2.0

	var hBarP float64
	switch {
	case c1p*c2p == 0:
		hBarP = h1p + h2p
	case math.Abs(h1p-h2p) <= 180:
		hBarP = (h1p + h2p) / 2.0
	case h1p+h2p < 360:
		hBarP = (h1p + h2p + 360) / 2.0
	default:
		hBarP = (h1p + h2p - 360) / 2.0
	}

	t := 1.0 -
		0.17*math.Cos((hBarP-30)*deg2rad) +
		0.24*math.Cos(2*hBarP*deg2rad) +
		0.32*math.Cos((3*hBarP+6)*deg2rad) -
		0.20*math.Cos((4*hBarP-63)*deg2rad)

	lBarShift := (lBar - 50) * (lBar - 50)
	sl := 1.0 + 0.015*lBarShift/math.Sqrt(20.0+lBarShift)
	sc := 1.0 + 0.045*cBarP
	sh := 1.0 + 0.015*cBarP*t

	dTheta := 30.0 * math.Exp(-((hBarP-275)/25.0)*((hBarP-275)/25.0))
	cBarP7 := math.Pow(cBarP, 7)
	rc := 2.0 * math.Sqrt(cBarP7/(cBarP7+math.Pow(25.0, 7)))
	rt := -rc * math.Sin(2.0*dTheta*deg2rad)

	lTerm := dLp / sl
	cTerm := dCp / sc
	hTerm := dHp / sh

	return math.Sqrt(lTerm*lTerm + cTerm*cTerm + hTerm*hTerm + rt*cTerm*hTerm)
}

// hueAngle returns the hue angle atan2(b, a') in degrees, in [0, 360).
func hueAngle(b, ap float64) float64 {
	if b == 0 && ap == 0 {
		return 0
	}
	h := math.Atan2(b, ap) * 180.0 / math.Pi
	if h < 0 {
		h += 360.0
	}
	return h
}

func srgbToLinear(c float64) float64 {
	if c > 0.04045 {
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return c / 12.92
}

func linearToSRGB(c float64) float64 {
	if c > 0.0031308 {
		return 1.055*math.Pow(c, 1.0/2.4) - 0.055
	}
	return 12.92 * c
}

func pivotXYZ(t float64) float64 {
	if t > epsilon {
		return math.Cbrt(t)
	}
	return (kappa*t + 16.0) / 116.0
}

func unpivotXYZ(f float64) float64 {
	f3 := f * f * f
	if f3 > epsilon {
		return f3
	}
	return (116.0*f - 16.0) / kappa
}

func clampChannel(c float64) uint8 {
	v := math.Round(c * 255.0)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
