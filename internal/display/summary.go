package display

import (
	"fmt"
	"io"
	"strings"
)

// Field is one labelled line of a summary.
type Field struct {
	Label string
	Value string
}

// Summary renders a titled block of fields.
func Summary(out io.Writer, title string, fields []Field) {
	s := DefaultStyles()
	var sb strings.Builder
	sb.WriteString(s.Title.Render(title))
	sb.WriteByte('\n')
	for _, f := range fields {
		sb.WriteString(s.Label.Render(f.Label))
		sb.WriteString(s.Value.Render(f.Value))
		sb.WriteByte('\n')
	}
	fmt.Fprint(out, sb.String())
}

// Success prints a success status line.
func Success(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, DefaultStyles().Success.Render(fmt.Sprintf(format, args...)))
}

// Failure prints a failure status line.
func Failure(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, DefaultStyles().Error.Render(fmt.Sprintf(format, args...)))
}

// Status prints a muted status line.
func Status(out io.Writer, format string, args ...any) {
	fmt.Fprintln(out, DefaultStyles().Muted.Render(fmt.Sprintf(format, args...)))
}
