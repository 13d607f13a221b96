package waveform

// Line is a single vertical bar of the waveform
type Line struct {
	X  float64 `json:"x"`
	Y0 float64 `json:"y0"`
	Y1 float64 `json:"y1"`
}

// Render lays out one vertical line per sample, oldest at x=0.
// Lines are spaced width/capacity apart and centred at height/2, extending
// (sample/maxAmplitude)*(height/2) up and down. Degenerate input (no samples,
// zero-area surface, non-positive capacity or maxAmplitude) yields no lines.
func Render(samples []float64, width, height float64, capacity int, maxAmplitude float64) []Line {
	if len(samples) == 0 || width <= 0 || height <= 0 || capacity <= 0 || maxAmplitude <= 0 {
		return nil
	}

	step := width / float64(capacity)
	midY := height / 2

	lines := make([]Line, 0, len(samples))
	x := 0.0
	for _, s := range samples {
		scaled := scale(s, maxAmplitude) * midY
		lines = append(lines, Line{
			X:  x,
			Y0: midY - scaled,
			Y1: midY + scaled,
		})
		x += step
	}

	return lines
}

// scale maps a sample to 0..1 of the available half-height
func scale(sample, maxAmplitude float64) float64 {
	if sample <= 0 {
		return 0
	}
	if sample >= maxAmplitude {
		return 1
	}
	return sample / maxAmplitude
}
