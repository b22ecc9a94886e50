// ABOUTME: Biquad filter sections for the channel EQ
// ABOUTME: RBJ cookbook shelving and peaking designs, per-channel state
package dsp

import "math"

// BiquadCoeffs holds normalized transfer function coefficients.
type BiquadCoeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Biquad is a direct form I section with its own state, one per channel.
type Biquad struct {
	coeffs         BiquadCoeffs
	x1, x2, y1, y2 float64
}

// SetCoeffs replaces the coefficients without touching filter state.
func (b *Biquad) SetCoeffs(c BiquadCoeffs) {
	b.coeffs = c
}

// Reset clears the filter history.
func (b *Biquad) Reset() {
	b.x1, b.x2, b.y1, b.y2 = 0, 0, 0, 0
}

// Process filters one sample.
func (b *Biquad) Process(x float64) float64 {
	c := &b.coeffs
	y := c.B0*x + c.B1*b.x1 + c.B2*b.x2 - c.A1*b.y1 - c.A2*b.y2
	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

// Unity returns pass-through coefficients.
func Unity() BiquadCoeffs {
	return BiquadCoeffs{B0: 1}
}

// LowShelf designs a low shelving filter with gain in dB at freq Hz.
func LowShelf(sampleRate, freq, gainDB float64) BiquadCoeffs {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	sinw := math.Sin(w0)
	s := 1.0
	alpha := sinw / 2 * math.Sqrt((a+1/a)*(1/s-1)+2)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cosw + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosw)
	b2 := a * ((a + 1) - (a-1)*cosw - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cosw + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cosw)
	a2 := (a + 1) + (a-1)*cosw - 2*sqrtA*alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighShelf designs a high shelving filter with gain in dB at freq Hz.
func HighShelf(sampleRate, freq, gainDB float64) BiquadCoeffs {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	sinw := math.Sin(w0)
	s := 1.0
	alpha := sinw / 2 * math.Sqrt((a+1/a)*(1/s-1)+2)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosw + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw)
	b2 := a * ((a + 1) + (a-1)*cosw - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosw + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosw)
	a2 := (a + 1) - (a-1)*cosw - 2*sqrtA*alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// Peaking designs a peaking EQ filter with gain in dB at freq Hz.
func Peaking(sampleRate, freq, gainDB, q float64) BiquadCoeffs {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cosw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosw
	a2 := 1 - alpha/a

	return normalize(b0, b1, b2, a0, a1, a2)
}

// LowPass designs a resonant low-pass filter at freq Hz.
func LowPass(sampleRate, freq, q float64) BiquadCoeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b1 := 1 - cosw
	b0 := b1 / 2
	b2 := b0
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighPass designs a resonant high-pass filter at freq Hz.
func HighPass(sampleRate, freq, q float64) BiquadCoeffs {
	w0 := 2 * math.Pi * freq / sampleRate
	cosw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := (1 + cosw) / 2
	b1 := -(1 + cosw)
	b2 := b0
	a0 := 1 + alpha
	a1 := -2 * cosw
	a2 := 1 - alpha

	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float64) BiquadCoeffs {
	return BiquadCoeffs{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
