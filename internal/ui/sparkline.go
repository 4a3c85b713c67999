package ui

import "strings"

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a single row of block characters, at most
// width cells wide. Longer series are resampled by bucket-averaging so
// the whole history stays visible in a fixed pane.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	if len(values) > width {
		values = resample(values, width)
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	var b strings.Builder
	span := max - min
	for _, v := range values {
		idx := len(sparkRunes) - 1
		if span > 0 {
			idx = int((v - min) / span * float64(len(sparkRunes)-1))
			if idx < 0 {
				idx = 0
			}
			if idx >= len(sparkRunes) {
				idx = len(sparkRunes) - 1
			}
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func resample(values []float64, buckets int) []float64 {
	out := make([]float64, buckets)
	for i := 0; i < buckets; i++ {
		lo := i * len(values) / buckets
		hi := (i + 1) * len(values) / buckets
		if hi <= lo {
			hi = lo + 1
		}
		sum := 0.0
		for _, v := range values[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
