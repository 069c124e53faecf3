package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/avqqc/internal/hermes"
	"github.com/MikeSquared-Agency/avqqc/internal/qqc"
	"github.com/MikeSquared-Agency/avqqc/internal/transcript"
)

// ModuleName identifies this stage in the pipeline logs table.
const ModuleName = "transcript-qqc"

// Store is the persistence the processor and runner need.
type Store interface {
	FetchTranscriptToProcess(ctx context.Context, studyID string, skip []string) (string, error)
	WriteQuickQc(ctx context.Context, rec *qqc.Record) (bool, error)
	HasQuickQc(ctx context.Context, transcriptPath string) (bool, error)
	WriteLog(ctx context.Context, module, message string) error
}

// Publisher emits pipeline events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs the transcript quick-QC for one file at a time.
type Processor struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger

	mu sync.Mutex
}

// New creates a Processor. publisher may be nil.
func New(s Store, pub Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		store:     s,
		publisher: pub,
		logger:    logger,
	}
}

// Analyze parses a transcript and assembles its record without storing it.
func (p *Processor) Analyze(path string) (*qqc.Record, error) {
	start := time.Now()

	turns, err := transcript.ParseFile(path, p.logger.With("transcript", path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	metrics, err := qqc.Analyze(turns)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	return qqc.Assemble(path, turns, metrics, &elapsed), nil
}

// ProcessFile checks one transcript and persists the record. Nothing is
// written when any step fails.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*qqc.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("checking transcript", "transcript", path)

	rec, err := p.Analyze(path)
	if err != nil {
		p.publishFailure(path, err)
		return nil, err
	}

	written, err := p.store.WriteQuickQc(ctx, rec)
	if err != nil {
		p.publishFailure(path, err)
		return nil, fmt.Errorf("persist %s: %w", path, err)
	}
	if !written {
		p.logger.Warn("transcript already has a quick qc record", "transcript", path)
		return rec, nil
	}

	interviewer, _ := rec.SpeakerWithRole(qqc.RoleInterviewer)
	subject, _ := rec.SpeakerWithRole(qqc.RoleSubject)
	p.logger.Info("transcript checked",
		"transcript", path,
		"speakers", len(rec.SpeakerMetrics),
		"turns", len(rec.TurnData),
		"interviewer", interviewer,
		"subject", subject,
	)

	p.publish(hermes.SubjectQuickQcCompleted, hermes.QuickQcEvent{
		RecordID:       rec.ID.String(),
		TranscriptPath: path,
		Interviewer:    interviewer,
		Subject:        subject,
		NumSpeakers:    len(rec.SpeakerMetrics),
		NumTurns:       len(rec.TurnData),
		ProcessTime:    rec.ProcessTime,
		Timestamp:      rec.Timestamp,
	})
	return rec, nil
}

// HandleTranscriptImported is the NATS handler for pipeline.transcript.imported.
func (p *Processor) HandleTranscriptImported(subject string, data []byte) {
	ctx := context.Background()

	var evt hermes.TranscriptImportedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse transcript event", "subject", subject, "error", err)
		return
	}
	if evt.TranscriptPath == "" {
		p.logger.Warn("transcript event without path", "subject", subject)
		return
	}

	done, err := p.store.HasQuickQc(ctx, evt.TranscriptPath)
	if err != nil {
		p.logger.Error("failed to check quick qc", "transcript", evt.TranscriptPath, "error", err)
		return
	}
	if done {
		p.logger.Debug("transcript already checked", "transcript", evt.TranscriptPath)
		return
	}

	if _, err := p.ProcessFile(ctx, evt.TranscriptPath); err != nil {
		p.logger.Error("transcript quick qc failed", "transcript", evt.TranscriptPath, "error", err)
	}
}

// IsPermanent reports whether err comes from the transcript content, so that
// retrying the same file cannot succeed. Open, storage and other errors are
// not permanent.
func IsPermanent(err error) bool {
	var perr *transcript.ParseError
	var rerr *qqc.InvalidRoleError
	return errors.As(err, &perr) || errors.As(err, &rerr)
}

func (p *Processor) publishFailure(path string, err error) {
	p.publish(hermes.SubjectQuickQcFailed, hermes.QuickQcEvent{
		TranscriptPath: path,
		Error:          err.Error(),
		Timestamp:      time.Now().UTC(),
	})
}

func (p *Processor) publish(subject string, evt hermes.QuickQcEvent) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, evt); err != nil {
		p.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
