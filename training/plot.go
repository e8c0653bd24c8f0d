package training

import (
	"fmt"
	"io"
	"strings"
)

const plotHeight = 10

// PlotAccuracy draws a crude vertical bar chart of per-epoch accuracy (0..1),
// one column per epoch.
func PlotAccuracy(w io.Writer, reports []EpochReport) {
	values := make([]float64, len(reports))
	for i, r := range reports {
		values[i] = r.Accuracy
	}
	asciiPlot(w, values)
}

func asciiPlot(w io.Writer, values []float64) {
	if len(values) == 0 {
		fmt.Fprintln(w, "no data to plot")
		return
	}
	var b strings.Builder
	for row := plotHeight; row >= 1; row-- {
		threshold := float64(row) / plotHeight
		for _, v := range values {
			if v >= threshold {
				b.WriteString("█")
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat("─", len(values)))
	b.WriteByte('\n')
	// epoch ticks every 5 columns
	for i := range values {
		if i%5 == 0 {
			fmt.Fprint(&b, i%10)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte('\n')
	io.WriteString(w, b.String())
}
