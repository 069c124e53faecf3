package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/avqqc/internal/slack"
	"github.com/MikeSquared-Agency/avqqc/internal/store"
)

// Notifier receives a summary after every pass that did work.
type Notifier interface {
	PostRunSummary(ctx context.Context, summary slack.RunSummary) error
}

// Runner polls the store for unchecked transcripts, study by study.
type Runner struct {
	proc     *Processor
	store    Store
	notifier Notifier
	studies  []string
	snooze   time.Duration
	logger   *slog.Logger

	// failed holds transcripts whose content cannot be checked; they are not
	// fetched again while the runner lives, or across restarts when state
	// is set.
	failed map[string]bool
	state  *RunState
}

// NewRunner creates a Runner. notifier may be nil. A zero snooze makes Run
// return after one pass.
func NewRunner(proc *Processor, s Store, studies []string, snooze time.Duration, notifier Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		proc:     proc,
		store:    s,
		notifier: notifier,
		studies:  studies,
		snooze:   snooze,
		logger:   logger,
		failed:   make(map[string]bool),
	}
}

// WithState seeds the skip list from st and saves progress to it after
// every pass that did work.
func (r *Runner) WithState(st *RunState) *Runner {
	r.state = st
	for _, path := range st.Failed {
		r.failed[path] = true
	}
	return r
}

// Run repeats passes, snoozing between them, until ctx is done. A failed
// pass is logged and retried after the snooze; with a zero snooze its error
// is returned.
func (r *Runner) Run(ctx context.Context) error {
	for {
		_, err := r.RunOnce(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if r.snooze <= 0 {
			if err == nil {
				r.logger.Info("snooze time is 0, exiting")
			}
			return err
		}

		if err != nil {
			r.logger.Error("quick qc pass failed, retrying after snooze", "error", err, "seconds", int(r.snooze.Seconds()))
		} else {
			r.logger.Info("no transcript to process, snoozing", "seconds", int(r.snooze.Seconds()))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.snooze):
		}
	}
}

// RunOnce checks transcripts until no study has any left and returns the
// number of records written.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	processed := 0
	var failed []string
	// retry holds transcripts that failed for other reasons during this
	// pass only.
	retry := make(map[string]bool)

	for _, study := range r.studies {
		r.logger.Info("using study", "study", study)

		for {
			if err := ctx.Err(); err != nil {
				r.finishPass(ctx, start, processed, failed)
				return processed, err
			}

			path, err := r.store.FetchTranscriptToProcess(ctx, study, r.skipList(retry))
			if errors.Is(err, store.ErrNoTranscript) {
				break
			}
			if err != nil {
				r.finishPass(ctx, start, processed, failed)
				return processed, fmt.Errorf("study %s: %w", study, err)
			}

			if _, err := r.proc.ProcessFile(ctx, path); err != nil {
				permanent := IsPermanent(err)
				r.logger.Error("transcript quick qc failed", "study", study, "transcript", path, "permanent", permanent, "error", err)
				if permanent {
					r.failed[path] = true
				} else {
					retry[path] = true
				}
				failed = append(failed, path)
				continue
			}
			processed++
		}
	}

	r.finishPass(ctx, start, processed, failed)
	return processed, nil
}

func (r *Runner) finishPass(ctx context.Context, start time.Time, processed int, failed []string) {
	if processed == 0 && len(failed) == 0 {
		return
	}

	msg := fmt.Sprintf("Checked transcript quick QC for %d files.", processed)
	if len(failed) > 0 {
		msg += fmt.Sprintf(" %d failed.", len(failed))
	}
	r.logger.Info("pass complete", "processed", processed, "failed", len(failed))

	if r.state != nil {
		r.state.record(processed, r.failed)
		if err := r.state.Save(); err != nil {
			r.logger.Warn("failed to save runner state", "error", err)
		}
	}

	// The pass may end on a cancelled ctx; the bookkeeping should still land.
	bg := context.WithoutCancel(ctx)
	if err := r.store.WriteLog(bg, ModuleName, msg); err != nil {
		r.logger.Warn("failed to write pipeline log", "error", err)
	}

	if r.notifier != nil {
		summary := slack.RunSummary{
			Module:    ModuleName,
			Studies:   r.studies,
			Processed: processed,
			Failed:    failed,
			Elapsed:   time.Since(start),
		}
		if err := r.notifier.PostRunSummary(bg, summary); err != nil {
			r.logger.Warn("failed to post run summary", "error", err)
		}
	}
}

func (r *Runner) skipList(retry map[string]bool) []string {
	skip := make([]string, 0, len(r.failed)+len(retry))
	for path := range r.failed {
		skip = append(skip, path)
	}
	for path := range retry {
		if !r.failed[path] {
			skip = append(skip, path)
		}
	}
	sort.Strings(skip)
	return skip
}
