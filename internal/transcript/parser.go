package transcript

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"
)

// speakerMarker is the first character of every turn line.
const speakerMarker = 'S'

const byteOrderMark = "\ufeff"

// Turn is one utterance segment of a transcript.
type Turn struct {
	Speaker string
	Start   time.Duration
	End     *time.Duration // nil for the last turn
	Text    string
}

// Duration returns End - Start, or false when the turn has no end.
func (t Turn) Duration() (time.Duration, bool) {
	if t.End == nil {
		return 0, false
	}
	return *t.End - t.Start, true
}

// ParseError is returned when a speaker line cannot be split into
// speaker, timestamp and text. It aborts the whole transcript.
type ParseError struct {
	Line    int
	Content string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse transcript line %d %q: %s", e.Line, e.Content, e.Reason)
}

// ParseFile opens a transcript file and parses it.
func ParseFile(path string, logger *slog.Logger) ([]Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	return Parse(f, logger)
}

// Parse reads a speaker-labeled transcript:
//
//	S1 00:00:02.350 Greetings, everyone.
//	S2: 00:00:06.000 Thank you for joining us.
//
// Blank lines are skipped. Lines not starting with 'S' are logged and
// skipped. The end time of each turn is the start time of the next one.
func Parse(r io.Reader, logger *slog.Logger) ([]Turn, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var turns []Turn

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 {
			line = strings.TrimPrefix(line, byteOrderMark)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line[0] != speakerMarker {
			logger.Warn("skipped transcript line", "line", lineNo, "content", line)
			continue
		}

		turn, err := parseLine(line)
		if err != nil {
			err.Line = lineNo
			logger.Error("failed to parse transcript line", "line", lineNo, "content", line, "reason", err.Reason)
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	for i := 0; i+1 < len(turns); i++ {
		end := turns[i+1].Start
		turns[i].End = &end
	}

	return turns, nil
}

func parseLine(line string) (Turn, *ParseError) {
	speaker, rest := cutField(line)
	stamp, text := cutField(rest)
	text = strings.TrimSpace(text)
	if stamp == "" || text == "" {
		return Turn{}, &ParseError{Content: line, Reason: "expected speaker, timestamp and text"}
	}

	speaker = strings.TrimSuffix(speaker, ":")

	start, err := ParseTimestamp(stamp)
	if err != nil {
		return Turn{}, &ParseError{Content: line, Reason: err.Error()}
	}

	return Turn{Speaker: speaker, Start: start, Text: text}, nil
}

// cutField splits s at the first run of whitespace.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
