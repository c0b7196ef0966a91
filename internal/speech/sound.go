package speech

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// SampleRate is the rate the VAD model and the recognizer expect.
const SampleRate = 16000

// ResampleInt16 converts in from one sample rate to another by truncating or
// zero padding its spectrum.
func ResampleInt16(in []int16, from, to int) []int16 {
	if len(in) == 0 || from <= 0 || to <= 0 {
		return nil
	}
	if from == to {
		out := make([]int16, len(in))
		copy(out, in)
		return out
	}

	n := len(in)
	m := int(int64(n) * int64(to) / int64(from))
	if m == 0 {
		return nil
	}

	x := make([]float64, n)
	for i, s := range in {
		x[i] = float64(s)
	}
	spectrum := fft.FFTReal(x)

	resized := make([]complex128, m)
	half := min(n, m) / 2
	for k := 0; k <= half && k < m; k++ {
		resized[k] = spectrum[k]
	}
	for k := 1; k < half; k++ {
		resized[m-k] = spectrum[n-k]
	}

	y := fft.IFFT(resized)
	scale := float64(m) / float64(n)
	out := make([]int16, m)
	for i, v := range y {
		out[i] = clampInt16(real(v) * scale)
	}
	return out
}

func clampInt16(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func ConvertInt16ToInt(in []int16) []int {
	out := make([]int, len(in))
	for i, s := range in {
		out[i] = int(s)
	}
	return out
}

// ConvertInt16ToFloat32 scales samples into [-1, 1).
func ConvertInt16ToFloat32(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s) / 32768
	}
	return out
}

// calculateRMS16 calculates the root-mean-square of the audio buffer for int16 samples.
func calculateRMS16(buffer []int16) float64 {
	if len(buffer) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range buffer {
		val := float64(sample)
		sumSquares += val * val
	}
	return math.Sqrt(sumSquares / float64(len(buffer)))
}
