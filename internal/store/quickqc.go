package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/MikeSquared-Agency/avqqc/internal/qqc"
)

// FetchTranscriptToProcess returns a random transcript of the study that has
// no quick-QC row yet. Paths in skip are never returned. ErrNoTranscript is
// returned when nothing is left.
func (s *Store) FetchTranscriptToProcess(ctx context.Context, studyID string, skip []string) (string, error) {
	if skip == nil {
		skip = []string{}
	}

	var path string
	err := s.pool.QueryRow(ctx, `
		SELECT interview_files.interview_file
		FROM interview_files
		INNER JOIN interviews ON interview_files.interview_path = interviews.interview_path
		WHERE interviews.study_id = $1
			AND interview_files.interview_file_tags LIKE '%transcript%'
			AND NOT interview_files.interview_file = ANY($2)
			AND interview_files.interview_file NOT IN (
				SELECT transcript_path FROM transcript_quick_qc
			)
		ORDER BY RANDOM()
		LIMIT 1`,
		studyID, skip,
	).Scan(&path)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoTranscript
	}
	if err != nil {
		return "", fmt.Errorf("fetch transcript: %w", err)
	}
	return path, nil
}

// WriteQuickQc stores a record in a single transaction. A record for a
// transcript that already has one is ignored; the returned bool reports
// whether a row was written.
func (s *Store) WriteQuickQc(ctx context.Context, rec *qqc.Record) (bool, error) {
	metrics, err := json.Marshal(rec.SpeakerMetrics)
	if err != nil {
		return false, fmt.Errorf("marshal speaker metrics: %w", err)
	}
	turns, err := json.Marshal(rec.TurnData)
	if err != nil {
		return false, fmt.Errorf("marshal turn data: %w", err)
	}

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO transcript_quick_qc (id, transcript_path, speaker_metrics, turn_data, process_time, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (transcript_path) DO NOTHING`,
		id, rec.TranscriptPath, string(metrics), string(turns), rec.ProcessTime, rec.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert quick qc: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// HasQuickQc reports whether the transcript already has a record.
func (s *Store) HasQuickQc(ctx context.Context, transcriptPath string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM transcript_quick_qc WHERE transcript_path = $1)`,
		transcriptPath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check quick qc: %w", err)
	}
	return exists, nil
}

// GetQuickQc fetches the record of a transcript. A missing record is
// (nil, nil).
func (s *Store) GetQuickQc(ctx context.Context, transcriptPath string) (*qqc.Record, error) {
	var (
		rec         qqc.Record
		metrics     []byte
		turns       []byte
		processTime *float64
		ts          time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, transcript_path, speaker_metrics, turn_data, process_time, timestamp
		FROM transcript_quick_qc
		WHERE transcript_path = $1`,
		transcriptPath,
	).Scan(&rec.ID, &rec.TranscriptPath, &metrics, &turns, &processTime, &ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quick qc: %w", err)
	}

	if err := json.Unmarshal(metrics, &rec.SpeakerMetrics); err != nil {
		return nil, fmt.Errorf("decode speaker metrics: %w", err)
	}
	for speaker, m := range rec.SpeakerMetrics {
		m.Speaker = speaker
		rec.SpeakerMetrics[speaker] = m
	}
	if err := json.Unmarshal(turns, &rec.TurnData); err != nil {
		return nil, fmt.Errorf("decode turn data: %w", err)
	}
	rec.ProcessTime = processTime
	rec.Timestamp = ts
	return &rec, nil
}

// GetSpeakerMetrics returns the speaker metrics recorded for an interview,
// ordered by speaker. An interview without a record yields (nil, nil).
func (s *Store) GetSpeakerMetrics(ctx context.Context, interviewName string) ([]qqc.SpeakerMetrics, error) {
	raw, err := s.fetchByInterview(ctx, "speaker_metrics", interviewName)
	if err != nil || raw == nil {
		return nil, err
	}

	var bySpeaker map[string]qqc.SpeakerMetrics
	if err := json.Unmarshal(raw, &bySpeaker); err != nil {
		return nil, fmt.Errorf("decode speaker metrics: %w", err)
	}
	return qqc.SortedMetrics(bySpeaker), nil
}

// GetTurnData returns the turn timings recorded for an interview. An
// interview without a record yields (nil, nil).
func (s *Store) GetTurnData(ctx context.Context, interviewName string) ([]qqc.TurnRecord, error) {
	raw, err := s.fetchByInterview(ctx, "turn_data", interviewName)
	if err != nil || raw == nil {
		return nil, err
	}

	var turns []qqc.TurnRecord
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, fmt.Errorf("decode turn data: %w", err)
	}
	return turns, nil
}

// fetchByInterview reads one JSONB column of the interview's record.
// column is always a constant from this package.
func (s *Store) fetchByInterview(ctx context.Context, column, interviewName string) ([]byte, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT transcript_quick_qc.`+column+`
		FROM transcript_quick_qc
		INNER JOIN interview_files ON transcript_quick_qc.transcript_path = interview_files.interview_file
		INNER JOIN interviews ON interview_files.interview_path = interviews.interview_path
		WHERE interviews.interview_name = $1
		ORDER BY transcript_quick_qc.timestamp DESC
		LIMIT 1`,
		interviewName,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", column, err)
	}
	return raw, nil
}
