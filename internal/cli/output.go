// Package cli provides the canvas command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"advisory-canvas/internal/protocol"
)

// Color codes for terminal output
const (
	ColorReset   = "\033[0m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorBold    = "\033[1m"
	ColorDim     = "\033[2m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// messageColors groups wire message types: mutations by effect, the sync
// exchange together, context announcements apart.
var messageColors = map[string]string{
	protocol.TypeAdd:          ColorGreen,
	protocol.TypeUpdate:       ColorCyan,
	protocol.TypeDelete:       ColorRed,
	protocol.TypeClear:        ColorRed,
	protocol.TypeSyncRequest:  ColorYellow,
	protocol.TypeSyncResponse: ColorYellow,
	protocol.TypeChartChange:  ColorMagenta,
	protocol.TypeFutureSpace:  ColorBlue,
}

// Output writes command results either as human-readable text or, with
// --json, as indented JSON.
type Output struct {
	writer       io.Writer
	jsonMode     bool
	colorEnabled bool
}

// NewOutput creates an Output for cmd's writer and flags.
func NewOutput(cmd *cobra.Command) *Output {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &Output{
		writer:       cmd.OutOrStdout(),
		jsonMode:     jsonMode,
		colorEnabled: !jsonMode && isTerminal(),
	}
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	return err == nil && fileInfo.Mode()&os.ModeCharDevice != 0
}

// IsJSON reports whether --json was given.
func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// JSON writes data as indented JSON.
func (o *Output) JSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Println writes args followed by a newline.
func (o *Output) Println(args ...interface{}) {
	fmt.Fprintln(o.writer, args...)
}

// Printf writes a formatted message.
func (o *Output) Printf(format string, args ...interface{}) {
	fmt.Fprintf(o.writer, format, args...)
}

func (o *Output) Success(format string, args ...interface{}) { o.line(ColorGreen, format, args...) }
func (o *Output) Error(format string, args ...interface{}) { o.line(ColorRed, format, args...) }
func (o *Output) Warning(format string, args ...interface{}) { o.line(ColorYellow, format, args...) }
func (o *Output) Info(format string, args ...interface{}) { o.line(ColorCyan, format, args...) }
func (o *Output) Bold(format string, args ...interface{}) { o.line(ColorBold, format, args...) }
func (o *Output) Dim(format string, args ...interface{}) { o.line(ColorDim, format, args...) }

func (o *Output) line(color, format string, args ...interface{}) {
	fmt.Fprintln(o.writer, o.paint(color, fmt.Sprintf(format, args...)))
}

// paint wraps text in color when the writer is a terminal.
func (o *Output) paint(color, text string) string {
	if !o.colorEnabled || color == "" {
		return text
	}
	return color + text + ColorReset
}

// BoldText returns text in bold.
func (o *Output) BoldText(text string) string {
	return o.paint(ColorBold, text)
}

// ConnectionState renders a relay connection flag.
func (o *Output) ConnectionState(connected bool) string {
	if connected {
		return o.paint(ColorGreen, "connected")
	}
	return o.paint(ColorRed, "disconnected")
}

// MessageType colors a wire message type. Unknown types are left plain.
func (o *Output) MessageType(msgType string) string {
	return o.paint(messageColors[msgType], msgType)
}

// visibleLen is the printed width of s without color codes.
func visibleLen(s string) int {
	return len([]rune(ansiPattern.ReplaceAllString(s, "")))
}

func pad(s string, width int) string {
	if n := width - visibleLen(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// Table collects rows and prints them with aligned columns.
type Table struct {
	headers []string
	rows    [][]string
	output  *Output
}

// NewTable creates a table with the given column headers.
func NewTable(output *Output, headers ...string) *Table {
	return &Table{headers: headers, output: output}
}

// AddRow appends a row. Cells beyond the header count are ignored.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Render prints the header, a rule and every row.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = visibleLen(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := visibleLen(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := make([]string, len(t.headers))
	rule := make([]string, len(t.headers))
	for i, h := range t.headers {
		header[i] = t.output.paint(ColorBold, pad(h, widths[i]))
		rule[i] = strings.Repeat("─", widths[i])
	}
	t.output.Println(strings.Join(header, "  "))
	t.output.Println(t.output.paint(ColorDim, strings.Join(rule, "──")))

	for _, row := range t.rows {
		cells := make([]string, 0, len(widths))
		for i := 0; i < len(row) && i < len(widths); i++ {
			cells = append(cells, pad(row[i], widths[i]))
		}
		t.output.Println(strings.Join(cells, "  "))
	}
}

// Box prints content framed under a title.
func (o *Output) Box(title string, content []string) {
	inner := visibleLen(title)
	for _, line := range content {
		if n := visibleLen(line); n > inner {
			inner = n
		}
	}
	rule := strings.Repeat("─", inner+2)
	edge := o.paint(ColorDim, "│")

	o.Println(o.paint(ColorDim, "┌"+rule+"┐"))
	o.Printf("%s %s %s\n", edge, o.paint(ColorBold, pad(title, inner)), edge)
	o.Println(o.paint(ColorDim, "├"+rule+"┤"))
	for _, line := range content {
		o.Printf("%s %s %s\n", edge, pad(line, inner), edge)
	}
	o.Println(o.paint(ColorDim, "└"+rule+"┘"))
}
