package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/deform/internal/dynamo"
)

// Spectrum is the one-sided amplitude spectrum of a real series.
type Spectrum struct {
	Freqs     []float64
	Amplitude []float64
}

// NewSpectrum transforms samples taken every dt seconds. The mean is
// removed first so the zero-frequency bin only holds numerical noise.
func NewSpectrum(samples []float64, dt float64) (Spectrum, error) {
	if len(samples) < 4 {
		return Spectrum{}, fmt.Errorf("spectrum of %d samples, need at least 4: %w", len(samples), dynamo.ErrParameterBounds)
	}
	if dt <= 0 {
		return Spectrum{}, fmt.Errorf("spectrum sample spacing %g: %w", dt, dynamo.ErrParameterBounds)
	}

	mean := stat.Mean(samples, nil)
	centered := make([]float64, len(samples))
	for i, v := range samples {
		centered[i] = v - mean
	}

	n := len(centered)
	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)

	s := Spectrum{
		Freqs:     make([]float64, len(coeff)),
		Amplitude: make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		s.Freqs[i] = fft.Freq(i) / dt
		s.Amplitude[i] = 2 * cmplx.Abs(c) / float64(n)
	}
	return s, nil
}

// Dominant returns the frequency and amplitude of the largest non-DC bin.
func (s Spectrum) Dominant() (freq, amplitude float64) {
	for i := 1; i < len(s.Amplitude); i++ {
		if s.Amplitude[i] > amplitude {
			freq, amplitude = s.Freqs[i], s.Amplitude[i]
		}
	}
	return freq, amplitude
}
