package qqc

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/MikeSquared-Agency/avqqc/internal/transcript"
)

// TurnRecord is the persisted timing of one turn. Times use the transcript
// HH:MM:SS.fff form.
type TurnRecord struct {
	Speaker   string  `json:"speaker"`
	StartTime string  `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// Record is the quick-QC result for one transcript file.
type Record struct {
	ID             uuid.UUID                 `json:"id"`
	TranscriptPath string                    `json:"transcript_path"`
	SpeakerMetrics map[string]SpeakerMetrics `json:"speaker_metrics"`
	TurnData       []TurnRecord              `json:"turn_data"`
	ProcessTime    *float64                  `json:"process_time"` // seconds
	Timestamp      time.Time                 `json:"timestamp"`
}

// Analyze computes speaker metrics for turns and assigns roles.
func Analyze(turns []transcript.Turn) ([]SpeakerMetrics, error) {
	metrics := ComputeMetrics(turns)
	if err := AssignRoles(metrics); err != nil {
		return nil, fmt.Errorf("assign roles: %w", err)
	}
	return metrics, nil
}

// Assemble builds the record for transcriptPath. processTime may be nil.
func Assemble(transcriptPath string, turns []transcript.Turn, metrics []SpeakerMetrics, processTime *time.Duration) *Record {
	rec := &Record{
		ID:             uuid.New(),
		TranscriptPath: transcriptPath,
		SpeakerMetrics: make(map[string]SpeakerMetrics, len(metrics)),
		TurnData:       TurnRecords(turns),
		Timestamp:      time.Now().UTC(),
	}
	for _, m := range metrics {
		rec.SpeakerMetrics[m.Speaker] = m
	}
	if processTime != nil {
		secs := processTime.Seconds()
		rec.ProcessTime = &secs
	}
	return rec
}

// TurnRecords converts parsed turns to their persisted form, in order.
func TurnRecords(turns []transcript.Turn) []TurnRecord {
	out := make([]TurnRecord, len(turns))
	for i, t := range turns {
		out[i] = TurnRecord{
			Speaker:   t.Speaker,
			StartTime: transcript.FormatTimestamp(t.Start),
		}
		if t.End != nil {
			end := transcript.FormatTimestamp(*t.End)
			out[i].EndTime = &end
		}
	}
	return out
}

// Turns converts persisted turn records back to turns without text.
func Turns(records []TurnRecord) ([]transcript.Turn, error) {
	out := make([]transcript.Turn, len(records))
	for i, r := range records {
		start, err := transcript.ParseTimestamp(r.StartTime)
		if err != nil {
			return nil, fmt.Errorf("turn %d start: %w", i, err)
		}
		out[i] = transcript.Turn{Speaker: r.Speaker, Start: start}
		if r.EndTime != nil {
			end, err := transcript.ParseTimestamp(*r.EndTime)
			if err != nil {
				return nil, fmt.Errorf("turn %d end: %w", i, err)
			}
			out[i].End = &end
		}
	}
	return out, nil
}

// SortedMetrics returns the metrics of a speaker map ordered by speaker,
// with Speaker filled in from the map key.
func SortedMetrics(bySpeaker map[string]SpeakerMetrics) []SpeakerMetrics {
	out := make([]SpeakerMetrics, 0, len(bySpeaker))
	for speaker, m := range bySpeaker {
		m.Speaker = speaker
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Speaker < out[j].Speaker })
	return out
}

// SpeakerWithRole returns the speaker assigned role, if any.
func (r *Record) SpeakerWithRole(role Role) (string, bool) {
	for _, m := range SortedMetrics(r.SpeakerMetrics) {
		if m.Role != nil && *m.Role == role {
			return m.Speaker, true
		}
	}
	return "", false
}
