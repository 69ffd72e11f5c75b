package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// Default ASS style block used when the configuration supplies none. The
// Secondary style carries the lower line of bilingual layouts.
const defaultASSStyles = `[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Default,Arial,28,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,2,10,10,15,1
Style: Secondary,Arial,18,&H00D3D3D3,&H000000FF,&H00000000,&H80000000,0,0,0,0,100,100,0,0,1,2,1,2,10,10,15,1`

// RenderASS encodes the transcript as an ASS file. Bilingual layouts write
// the top line with the Default style and the bottom line with Secondary;
// single-text layouts use Default only. A non-empty style replaces the
// built-in [V4+ Styles] block verbatim.
func RenderASS(t *Transcript, layout Layout, style string) []byte {
	styles := strings.TrimSpace(style)
	if styles == "" {
		styles = defaultASSStyles
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("PlayResX: 384\n")
	b.WriteString("PlayResY: 288\n\n")
	b.WriteString(styles)
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, seg := range t.Segments {
		lines := layout.lines(seg)
		start := formatASSTime(seg.Start)
		end := formatASSTime(seg.End)
		writeEvent(&b, start, end, "Default", lines[0])
		if len(lines) > 1 {
			writeEvent(&b, start, end, "Secondary", lines[1])
		}
	}
	return []byte(b.String())
}

func writeEvent(b *strings.Builder, start, end, style, text string) {
	text = strings.ReplaceAll(text, "\n", `\N`)
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n", start, end, style, text)
}

// formatASSTime renders h:mm:ss.cc with centisecond precision.
func formatASSTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	centis := d.Milliseconds() / 10
	hours := centis / 360_000
	centis -= hours * 360_000
	minutes := centis / 6000
	centis -= minutes * 6000
	seconds := centis / 100
	centis -= seconds * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, seconds, centis)
}
