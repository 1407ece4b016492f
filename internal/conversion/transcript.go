package conversion

import (
	"fmt"
	"strings"

	"github.com/relayproj/relay/internal/timeline"
)

// transcriptHeader wraps the rendered messages in a minimal standalone page.
const transcriptHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>Conversation transcript</title>
<style>
body { font-family: sans-serif; max-width: 48rem; margin: 2rem auto; }
.message { margin: 1rem 0; padding: 0.5rem 1rem; border-radius: 6px; }
.message.user { background: #eef3fb; }
.message.assistant { background: #f6f6f6; }
.role { font-size: 0.8rem; color: #666; text-transform: uppercase; }
pre { overflow-x: auto; }
</style>
</head>
<body>
`

const transcriptFooter = `</body>
</html>
`

// RenderTranscript renders a reconciled timeline as a standalone HTML page.
// Assistant messages are treated as markdown; user messages are escaped
// verbatim.
func RenderTranscript(messages []timeline.Message, conv *Converter) string {
	if conv == nil {
		conv = DefaultConverter()
	}

	var b strings.Builder
	b.WriteString(transcriptHeader)
	for _, m := range messages {
		role := string(m.Role)
		b.WriteString(fmt.Sprintf("<div class=%q data-message-id=%q>\n", "message "+role, m.ID))
		b.WriteString(fmt.Sprintf("<div class=\"role\">%s</div>\n", EscapeHTML(role)))
		if m.Role == timeline.RoleAssistant {
			b.WriteString(conv.ConvertToSafeHTML(m.Text()))
		} else {
			b.WriteString("<p>" + EscapeHTML(m.Text()) + "</p>")
		}
		b.WriteString("\n</div>\n")
	}
	b.WriteString(transcriptFooter)
	return b.String()
}
