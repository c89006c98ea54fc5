package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// logrus keeps panic and fatal below error, our levels start right after them.
const shiftLogrusLevel = 2

// These are the different logging levels.
const (
	// ErrorLevel level. Used for errors that should definitely be noted.
	ErrorLevel Level = iota
	// WarnLevel level. Non-critical entries that deserve eyes.
	WarnLevel
	// InfoLevel level. General operational entries, one line per round and per committed group.
	InfoLevel
	// DebugLevel level. Every probe and every command line.
	DebugLevel
	// TraceLevel level. Output of the validation commands.
	TraceLevel
)

// AllLevels exposes all logging levels
var AllLevels = Levels{
	ErrorLevel,
	WarnLevel,
	InfoLevel,
	DebugLevel,
	TraceLevel,
}

var levelNames = map[Level]string{
	ErrorLevel: "error",
	WarnLevel:  "warn",
	InfoLevel:  "info",
	DebugLevel: "debug",
	TraceLevel: "trace",
}

var levelShortNames = map[Level]string{
	ErrorLevel: "ERRO",
	WarnLevel:  "WARN",
	InfoLevel:  "INFO",
	DebugLevel: "DEBU",
	TraceLevel: "TRAC",
}

// Level type
type Level uint32

// ParseLevel takes a string and returns the Level constant.
func ParseLevel(str string) (Level, error) {
	for level, name := range levelNames {
		if strings.EqualFold(name, str) {
			return level, nil
		}
	}

	return Level(0), fmt.Errorf("invalid level %q, supported levels: %s", str, AllLevels) //nolint:err113
}

// String implements fmt.Stringer.
func (level Level) String() string {
	return levelNames[level]
}

// ShortName returns the four letter name used by the text formatter.
func (level Level) ShortName() string {
	return levelShortNames[level]
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (level *Level) UnmarshalText(text []byte) error {
	lvl, err := ParseLevel(string(text))
	if err != nil {
		return err
	}

	*level = lvl

	return nil
}

// ToLogrusLevel converts the level to the logrus one.
func (level Level) ToLogrusLevel() logrus.Level {
	return logrus.Level(level + shiftLogrusLevel)
}

// FromLogrusLevel converts the logrus level to ours. Logrus panic and fatal map to ErrorLevel.
func FromLogrusLevel(lvl logrus.Level) Level {
	if lvl < shiftLogrusLevel {
		return ErrorLevel
	}

	return Level(lvl - shiftLogrusLevel)
}

type Levels []Level

func (levels Levels) Names() []string {
	strs := make([]string, len(levels))

	for i, level := range levels {
		strs[i] = level.String()
	}

	return strs
}

func (levels Levels) String() string {
	return strings.Join(levels.Names(), ", ")
}
