// Package qqc computes the transcript quick-QC: per-speaker turn metrics,
// role inference and the persisted record.
package qqc

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/avqqc/internal/transcript"
)

// selfReference finds candidate "I" tokens. RE2 word boundaries are ASCII
// only, so hasSelfReference checks the neighbours again with Unicode classes.
var selfReference = regexp.MustCompile(`\bI\b`)

// SpeakerMetrics aggregates one speaker's turns. Durations are in seconds.
type SpeakerMetrics struct {
	Speaker               string   `json:"-"`
	NumQuestions          int      `json:"num_questions"`
	NumSelfReferences     int      `json:"num_self_references"`
	NumTurns              int      `json:"num_turns"`
	AvgTurnDuration       *float64 `json:"avg_turn_duration"`
	SumTurnDuration       float64  `json:"sum_turn_duration"`
	Role                  *Role    `json:"role"`
	InterviewerConfidence float64  `json:"interviewer_confidence"`
	SubjectConfidence     float64  `json:"subject_confidence"`
}

// ComputeMetrics groups turns by speaker, in first-seen order.
// Turns without an end time count towards NumTurns but are left out of
// the duration mean and sum.
func ComputeMetrics(turns []transcript.Turn) []SpeakerMetrics {
	index := make(map[string]int)
	var metrics []SpeakerMetrics
	var sums []time.Duration
	var measured []int

	for _, turn := range turns {
		i, ok := index[turn.Speaker]
		if !ok {
			i = len(metrics)
			index[turn.Speaker] = i
			metrics = append(metrics, SpeakerMetrics{Speaker: turn.Speaker})
			sums = append(sums, 0)
			measured = append(measured, 0)
		}
		m := &metrics[i]

		m.NumTurns++
		if strings.Contains(turn.Text, "?") {
			m.NumQuestions++
		}
		if hasSelfReference(turn.Text) {
			m.NumSelfReferences++
		}
		if d, ok := turn.Duration(); ok {
			sums[i] += d
			measured[i]++
		}
	}

	for i := range metrics {
		metrics[i].SumTurnDuration = sums[i].Seconds()
		if measured[i] > 0 {
			avg := sums[i].Seconds() / float64(measured[i])
			metrics[i].AvgTurnDuration = &avg
		}
	}

	return metrics
}

// hasSelfReference reports whether text contains "I" as a whole word, with
// word characters being Unicode letters, numbers and underscore.
func hasSelfReference(text string) bool {
	for _, loc := range selfReference.FindAllStringIndex(text, -1) {
		before, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
		after, _ := utf8.DecodeRuneInString(text[loc[1]:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
