package qqc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAssemble(t *testing.T) {
	turns := parse(t, exampleTranscript)
	metrics, err := Analyze(turns)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	elapsed := 1500 * time.Millisecond
	rec := Assemble("/data/PROTECTED/ST01/interviews/S1_transcript.txt", turns, metrics, &elapsed)

	if rec.ID == uuid.Nil {
		t.Error("expected record ID")
	}
	if rec.TranscriptPath != "/data/PROTECTED/ST01/interviews/S1_transcript.txt" {
		t.Errorf("path = %q", rec.TranscriptPath)
	}
	if rec.ProcessTime == nil || *rec.ProcessTime != 1.5 {
		t.Errorf("process time = %v, want 1.5", rec.ProcessTime)
	}
	if rec.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
	if len(rec.SpeakerMetrics) != 2 {
		t.Fatalf("expected 2 speakers, got %d", len(rec.SpeakerMetrics))
	}

	if len(rec.TurnData) != 3 {
		t.Fatalf("expected 3 turn records, got %d", len(rec.TurnData))
	}
	first := rec.TurnData[0]
	if first.Speaker != "S1" || first.StartTime != "00:00:00.000" || first.EndTime == nil || *first.EndTime != "00:00:05.000" {
		t.Errorf("turn[0] = %+v", first)
	}
	if rec.TurnData[2].EndTime != nil {
		t.Errorf("last turn end = %q, want nil", *rec.TurnData[2].EndTime)
	}

	if s, ok := rec.SpeakerWithRole(RoleInterviewer); !ok || s != "S1" {
		t.Errorf("interviewer = %q %v, want S1", s, ok)
	}
	if s, ok := rec.SpeakerWithRole(RoleSubject); !ok || s != "S2" {
		t.Errorf("subject = %q %v, want S2", s, ok)
	}
}

func TestAssemble_NoProcessTime(t *testing.T) {
	rec := Assemble("t.txt", nil, nil, nil)
	if rec.ProcessTime != nil {
		t.Errorf("process time = %f, want nil", *rec.ProcessTime)
	}
	if rec.TurnData == nil || len(rec.TurnData) != 0 {
		t.Errorf("expected empty turn data, got %v", rec.TurnData)
	}
}

func TestRecord_JSONShape(t *testing.T) {
	turns := parse(t, exampleTranscript)
	metrics, err := Analyze(turns)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	rec := Assemble("t.txt", turns, metrics, nil)

	data, err := json.Marshal(rec.SpeakerMetrics)
	if err != nil {
		t.Fatalf("marshal metrics: %v", err)
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	s1 := raw["S1"]
	for _, key := range []string{
		"num_questions", "num_self_references", "num_turns", "avg_turn_duration",
		"sum_turn_duration", "role", "interviewer_confidence", "subject_confidence",
	} {
		if _, ok := s1[key]; !ok {
			t.Errorf("missing key %q in %v", key, s1)
		}
	}
	if s1["role"] != "INTERVIEWER" {
		t.Errorf("role = %v, want INTERVIEWER", s1["role"])
	}

	var back map[string]SpeakerMetrics
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal metrics: %v", err)
	}
	sorted := SortedMetrics(back)
	if sorted[0].Speaker != "S1" || sorted[1].Speaker != "S2" {
		t.Fatalf("sorted speakers = %s, %s", sorted[0].Speaker, sorted[1].Speaker)
	}
	if sorted[0].InterviewerConfidence != rec.SpeakerMetrics["S1"].InterviewerConfidence {
		t.Errorf("confidence changed across encoding: %f vs %f",
			sorted[0].InterviewerConfidence, rec.SpeakerMetrics["S1"].InterviewerConfidence)
	}
	if sorted[1].Role == nil || *sorted[1].Role != RoleSubject {
		t.Errorf("S2 role = %v, want SUBJECT", sorted[1].Role)
	}
}

func TestTurns_FromRecords(t *testing.T) {
	turns := parse(t, exampleTranscript)
	records := TurnRecords(turns)

	back, err := Turns(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(back) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(back))
	}
	for i := range turns {
		if back[i].Speaker != turns[i].Speaker || back[i].Start != turns[i].Start {
			t.Errorf("turn[%d] = %+v, want %+v", i, back[i], turns[i])
		}
		if (back[i].End == nil) != (turns[i].End == nil) {
			t.Errorf("turn[%d] end mismatch", i)
		} else if back[i].End != nil && *back[i].End != *turns[i].End {
			t.Errorf("turn[%d] end = %v, want %v", i, *back[i].End, *turns[i].End)
		}
	}

	if _, err := Turns([]TurnRecord{{Speaker: "S1", StartTime: "soon"}}); err == nil {
		t.Error("expected error for invalid start time")
	}
}
