package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4d4d"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(13)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#ff4d4d")).
			Padding(0, 1)
)

// printNotice is the terminal rendition of the UI's one-shot notifications.
func printNotice(msg string) {
	fmt.Fprintln(os.Stderr, noticeStyle.Render(msg))
}

func summaryRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func renderCropSummary(r cropReport) string {
	rows := []string{titleStyle.Render("Crop")}
	rows = append(rows,
		summaryRow("source", fmt.Sprintf("%s (%gx%g shown at %gx%g)", r.Image,
			r.Dimensions.NaturalWidth, r.Dimensions.NaturalHeight,
			r.Dimensions.RenderedWidth, r.Dimensions.RenderedHeight)),
		summaryRow("selection", fmt.Sprintf("%g,%g %gx%g", r.Selection.X, r.Selection.Y, r.Selection.Width, r.Selection.Height)),
	)
	if r.Crop != nil {
		rows = append(rows, summaryRow("output", fmt.Sprintf("%s (%dx%d, %s)", r.Output,
			r.Crop.Width, r.Crop.Height, humanize.Bytes(uint64(len(r.Crop.Data))))))
	}
	if r.Boxes != nil || r.Text != "" {
		rows = append(rows, summaryRow("boxes", fmt.Sprintf("%d", len(r.Boxes))))
		rows = append(rows, summaryRow("text", r.Text))
	}
	if r.Translation != "" {
		rows = append(rows, summaryRow("translation", fmt.Sprintf("[%s] %s", r.TargetLang, r.Translation)))
	}
	if r.Overlay != "" {
		rows = append(rows, summaryRow("overlay", r.Overlay))
	}
	if r.HOCR != "" {
		rows = append(rows, summaryRow("hocr", r.HOCR))
	}
	return strings.Join(rows, "\n")
}
