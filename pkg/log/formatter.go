package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	timestampFormat = "15:04:05.000"
)

var levelColors = map[Level]string{
	ErrorLevel: "red",
	WarnLevel:  "yellow",
	InfoLevel:  "green",
	DebugLevel: "blue+h",
	TraceLevel: "white",
}

// TextFormatter renders `HH:MM:SS.mmm LEVEL message key=value ...` lines.
type TextFormatter struct {
	colorFuncs  map[Level]func(string) string
	fieldsColor func(string) string
	// DisableColors turns off ANSI level colors.
	DisableColors bool
}

// NewTextFormatter returns a text formatter with colors enabled when out is a terminal.
func NewTextFormatter(out io.Writer) *TextFormatter {
	formatter := &TextFormatter{
		DisableColors: !isTerminal(out),
		colorFuncs:    make(map[Level]func(string) string, len(levelColors)),
		fieldsColor:   ansi.ColorFunc("black+h"),
	}

	for level, style := range levelColors {
		formatter.colorFuncs[level] = ansi.ColorFunc(style)
	}

	return formatter
}

// Format implements logrus.Formatter.
func (formatter *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = new(bytes.Buffer)
	}

	level := FromLogrusLevel(entry.Level)
	levelName := level.ShortName()
	fields := formatter.fields(entry.Data)

	if !formatter.DisableColors {
		levelName = formatter.colorFuncs[level](levelName)

		if fields != "" {
			fields = formatter.fieldsColor(fields)
		}
	}

	fmt.Fprintf(buf, "%s %s %s", entry.Time.Format(timestampFormat), levelName, strings.TrimRight(entry.Message, "\n"))

	if fields != "" {
		buf.WriteString(" " + fields)
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func (formatter *TextFormatter) fields(data logrus.Fields) string {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = fmt.Sprintf("%s=%v", key, data[key])
	}

	return strings.Join(parts, " ")
}

// NewJSONFormatter returns a formatter writing one JSON object per entry.
func NewJSONFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

// FormatterByName returns the formatter registered under the name, `text` or `json`.
func FormatterByName(name string, out io.Writer) (logrus.Formatter, error) {
	switch strings.ToLower(name) {
	case "", FormatText:
		return NewTextFormatter(out), nil
	case FormatJSON:
		return NewJSONFormatter(), nil
	}

	return nil, fmt.Errorf("invalid log format %q, supported formats: %s, %s", name, FormatText, FormatJSON) //nolint:err113
}

func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
