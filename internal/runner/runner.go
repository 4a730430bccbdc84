// Package runner drives the batch enrichment loop: resolve target notes,
// skip the ones already completed, and for each remaining note invoke the
// model, validate the output, and commit the write-back plus progress mark.
// Every per-note failure is isolated; only initialization failures abort.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackzampolin/notesmith/internal/anki"
	"github.com/jackzampolin/notesmith/internal/ollama"
	"github.com/jackzampolin/notesmith/internal/progress"
	"github.com/jackzampolin/notesmith/internal/schema"
)

// Store is the note-storage collaborator.
type Store interface {
	FindNotes(ctx context.Context, query string) ([]int64, error)
	NotesInfo(ctx context.Context, ids []int64) ([]anki.Note, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]string) error
}

// Processor turns one note's fields into a structured model result.
type Processor interface {
	Process(ctx context.Context, fields map[string]string) (*ollama.Result, error)
}

// Events receives orchestrator progress for display. Implementations must
// not affect processing.
type Events interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	NoteDone(index, total int, ok bool, ref, detail string)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) Info(string, ...any)                     {}
func (NopEvents) Warn(string, ...any)                     {}
func (NopEvents) NoteDone(int, int, bool, string, string) {}

// Config fixes a run's behavior before it starts.
type Config struct {
	Deck         string
	RefField     string
	DryRun       bool
	SaveProgress bool
	ProgressPath string
}

// Summary is the run-end report.
type Summary struct {
	Succeeded       int
	Failed          int
	Skipped         int // already completed in a prior run
	Interrupted     bool
	ProgressUpdated bool // at least one successful save this run
	TotalTracked    int  // completion set size at run end
}

// Runner orchestrates one batch run.
type Runner struct {
	store     Store
	processor Processor
	validator *schema.Validator
	cfg       Config
	logger    *slog.Logger
	events    Events
}

// New creates a Runner. All collaborators are required except events, which
// defaults to a no-op sink.
func New(store Store, processor Processor, validator *schema.Validator, cfg Config, logger *slog.Logger, events Events) (*Runner, error) {
	if store == nil || processor == nil || validator == nil {
		return nil, errors.New("runner: store, processor, and validator are required")
	}
	if cfg.Deck == "" {
		return nil, errors.New("runner: deck is required")
	}
	if cfg.RefField == "" {
		return nil, errors.New("runner: ref field is required")
	}
	if cfg.SaveProgress && cfg.ProgressPath == "" {
		return nil, errors.New("runner: progress path is required when saving progress")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = NopEvents{}
	}
	return &Runner{
		store:     store,
		processor: processor,
		validator: validator,
		cfg:       cfg,
		logger:    logger,
		events:    events,
	}, nil
}

// Run executes the batch. The context is checked between notes only:
// cancelling it stops the loop after the in-flight note finishes, never
// mid-record. A non-nil error means the run could not start; per-note
// failures are counted in the summary instead.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	completed := progress.Load(r.cfg.ProgressPath, r.logger)
	if len(completed) > 0 {
		r.logger.Info("resuming from progress file",
			"path", r.cfg.ProgressPath, "completed", len(completed))
		r.events.Info("Resuming: %d notes already completed.", len(completed))
	}

	query := anki.DeckQuery(r.cfg.Deck)
	r.logger.Info("finding notes", "query", query)

	allIDs, err := r.store.FindNotes(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find notes in deck %q: %w", r.cfg.Deck, err)
	}
	if len(allIDs) == 0 {
		r.events.Info("No notes found in deck %q.", r.cfg.Deck)
		return &Summary{TotalTracked: len(completed)}, nil
	}

	targets := make([]int64, 0, len(allIDs))
	for _, id := range allIDs {
		if !completed.Contains(id) {
			targets = append(targets, id)
		}
	}
	// Ascending order for reproducible runs.
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	summary := &Summary{Skipped: len(allIDs) - len(targets)}
	if summary.Skipped > 0 {
		r.logger.Info("skipping already completed notes", "count", summary.Skipped)
		r.events.Info("Skipping %d already processed notes.", summary.Skipped)
	}
	if len(targets) == 0 {
		r.events.Info("All %d notes in the deck are already processed.", len(allIDs))
		summary.TotalTracked = len(completed)
		return summary, nil
	}

	r.logger.Info("fetching note data", "count", len(targets))
	notes, err := r.store.NotesInfo(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch note data: %w", err)
	}

	// Remote calls get a context that survives run cancellation so an
	// in-flight note always finishes under its own per-call timeout.
	callCtx := context.WithoutCancel(ctx)

	for i, note := range notes {
		if ctx.Err() != nil {
			r.logger.Warn("interruption requested, stopping before next note")
			summary.Interrupted = true
			break
		}
		r.processNote(callCtx, i+1, len(notes), note, completed, summary)
	}

	summary.TotalTracked = len(completed)
	return summary, nil
}

// processNote runs one note through the invoke/validate/commit states and
// updates counters. Failures are terminal for this run only; the note stays
// out of the completion set and is retried next run.
func (r *Runner) processNote(ctx context.Context, index, total int, note anki.Note, completed progress.Set, summary *Summary) {
	if note.NoteID <= 0 {
		r.logger.Error("note data missing note ID, skipping")
		summary.Failed++
		r.events.NoteDone(index, total, false, "(unknown note)", "missing note ID")
		return
	}

	id := note.NoteID
	fields := note.FieldValues()
	ref := fields[r.cfg.RefField]
	if ref == "" {
		ref = fmt.Sprintf("NoteID %d", id)
	}

	result, err := r.processor.Process(ctx, fields)
	if err != nil {
		// Transport failure, already retried where appropriate.
		r.logger.Error("inference call failed", "note_id", id,
			"exhausted", errors.Is(err, ollama.ErrExhausted), "error", err)
		summary.Failed++
		r.events.NoteDone(index, total, false, ref, "call failed")
		return
	}

	switch result.Status {
	case ollama.StatusOK:
		// fall through to validation
	case ollama.StatusEmptyInput:
		r.logger.Warn("note has no fields, nothing to process", "note_id", id)
		summary.Failed++
		r.events.NoteDone(index, total, false, ref, "empty note")
		return
	case ollama.StatusParseFailed:
		r.logger.Warn("model output was not JSON", "note_id", id)
		summary.Failed++
		r.events.NoteDone(index, total, false, ref, "bad model output")
		return
	case ollama.StatusIncomplete:
		r.logger.Warn("model output incomplete", "note_id", id, "missing", result.Missing)
		summary.Failed++
		r.events.NoteDone(index, total, false, ref, "incomplete model output")
		return
	}

	checked := r.validator.Check(result.Fields)
	if !checked.Usable() {
		r.logger.Warn("model output failed validation",
			"note_id", id, "missing", checked.Missing, "kept", len(checked.Fields))
		summary.Failed++
		r.events.NoteDone(index, total, false, ref, "invalid model output")
		return
	}

	if r.cfg.DryRun {
		r.logger.Info("dry run: update simulated", "note_id", id, "fields", checked.Fields)
	} else {
		if err := r.store.UpdateFields(ctx, id, checked.Fields); err != nil {
			r.logger.Error("note update failed", "note_id", id, "error", err)
			summary.Failed++
			r.events.NoteDone(index, total, false, ref, "update failed")
			return
		}
		r.logger.Info("note updated", "note_id", id, "fields", checked.Fields)
	}

	// Commit: mark complete and persist immediately so a crash after this
	// point loses counters at worst, never completion correctness.
	completed.Add(id)
	if r.cfg.SaveProgress {
		if err := progress.Save(r.cfg.ProgressPath, completed); err != nil {
			r.logger.Warn("could not persist progress, continuing", "error", err)
			r.events.Warn("Progress save failed: %v", err)
		} else {
			summary.ProgressUpdated = true
		}
	}

	summary.Succeeded++
	r.events.NoteDone(index, total, true, ref, "")
}
