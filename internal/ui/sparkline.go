package ui

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders per-second change counts as block characters, exactly
// width runes wide, newest sample on the right. Seconds without changes are
// blank so sparse activity stays readable; any non-zero sample draws at
// least the lowest block.
func Sparkline(data []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	peak := 0.0
	for _, v := range data {
		peak = max(peak, v)
	}

	out := make([]rune, width)
	pad := width - len(data)
	for i := range pad {
		out[i] = ' '
	}
	top := len(sparkBlocks) - 1
	for i, v := range data {
		if v <= 0 || peak <= 0 {
			out[pad+i] = ' '
			continue
		}
		out[pad+i] = sparkBlocks[min(int(v/peak*float64(top)+0.5), top)]
	}
	return string(out)
}
