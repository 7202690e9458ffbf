package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BarChart renders one demographic split (gender, age bucket, country, city)
// as horizontal percentage bars. Buckets are sorted by share, largest first;
// ties break alphabetically so the layout is stable across refreshes.
type BarChart struct {
	Title   string
	Data    map[string]float64
	MaxRows int // 0 means no limit
}

type bucket struct {
	label string
	share float64
}

func (c BarChart) sorted() []bucket {
	buckets := make([]bucket, 0, len(c.Data))
	for label, share := range c.Data {
		buckets = append(buckets, bucket{label: label, share: share})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].share != buckets[j].share {
			return buckets[i].share > buckets[j].share
		}
		return buckets[i].label < buckets[j].label
	})
	if c.MaxRows > 0 && len(buckets) > c.MaxRows {
		buckets = buckets[:c.MaxRows]
	}
	return buckets
}

// View renders the chart within the given total width.
func (c BarChart) View(styles Styles, width int) string {
	buckets := c.sorted()
	if len(buckets) == 0 {
		return ""
	}

	var sb strings.Builder
	if c.Title != "" {
		sb.WriteString(styles.Subtitle.Render(c.Title))
		sb.WriteString("\n")
	}

	labelWidth := 0
	for _, b := range buckets {
		if w := lipgloss.Width(b.label); w > labelWidth {
			labelWidth = w
		}
	}
	if labelWidth > 18 {
		labelWidth = 18
	}

	// label + space + bar + space + "100.0%"
	barWidth := width - labelWidth - 9
	if barWidth < 10 {
		barWidth = 10
	}

	colors := ChartColors()
	for i, b := range buckets {
		label := truncateLabel(b.label, labelWidth)
		filled := int(b.share / 100 * float64(barWidth))
		if filled < 1 && b.share > 0 {
			filled = 1
		}
		if filled > barWidth {
			filled = barWidth
		}

		barStyle := lipgloss.NewStyle().Foreground(colors[i%len(colors)])
		bar := barStyle.Render(strings.Repeat("█", filled)) +
			styles.Muted.Render(strings.Repeat("░", barWidth-filled))

		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(label))
		sb.WriteString(fmt.Sprintf("%s%s %s %5.1f%%\n", label, pad, bar, b.share))
	}

	return sb.String()
}

// truncateLabel shortens a label to at most width display cells, measuring
// runes rather than bytes so country and city names survive intact.
func truncateLabel(label string, width int) string {
	if lipgloss.Width(label) <= width {
		return label
	}
	runes := []rune(label)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
