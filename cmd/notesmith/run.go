package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/notesmith/internal/anki"
	"github.com/jackzampolin/notesmith/internal/config"
	"github.com/jackzampolin/notesmith/internal/logging"
	"github.com/jackzampolin/notesmith/internal/ollama"
	"github.com/jackzampolin/notesmith/internal/runner"
	"github.com/jackzampolin/notesmith/internal/schema"
	"github.com/jackzampolin/notesmith/internal/task"
	"github.com/jackzampolin/notesmith/internal/ui"
)

var (
	runTask   string
	runDryRun bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a deck with the configured task",
	Long: `Run finds every note in the task's deck, skips the ones already in the
progress file, and processes the rest one at a time: render the prompt,
call the model, validate the JSON response, write the fields back, and
record completion. Interrupt with Ctrl-C; the current note finishes and
the run stops cleanly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveHome()
		if err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile, dir.ConfigPath())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("dry-run") {
			cfg.Run.DryRun = runDryRun
		}

		taskName := cfg.Run.Task
		if runTask != "" {
			taskName = runTask
		}
		if taskName == "" {
			return fmt.Errorf("no task selected: set run.task in config or pass --task")
		}

		tk, err := task.Load(dir.TaskPath(taskName))
		if err != nil {
			return err
		}

		model, err := cfg.ModelFor(tk.Model)
		if err != nil {
			return err
		}

		runID := uuid.New().String()
		logger, closeLog, err := logging.NewRunLogger(dir.LogsPath(), runID)
		if err != nil {
			return err
		}
		defer closeLog()
		logger.Info("run starting", "task", taskName, "deck", tk.Deck, "model", model)

		printer := ui.New(os.Stdout)
		progressPath := dir.ProgressPath(tk.Deck)

		printer.ConfigPanel([]ui.ConfigLine{
			{Label: "Task:", Value: taskName},
			{Label: "Deck:", Value: tk.Deck},
			{Label: "Ref Field:", Value: tk.RefField},
			{Label: "Model:", Value: model},
			{Label: "Anki URL:", Value: cfg.Anki.URL, Dim: true},
			{Label: "LLM URL:", Value: cfg.LLM.URL, Dim: true},
			{Label: "Save Progress:", Value: fmt.Sprintf("%v (%s)", cfg.Run.SaveProgress, progressPath)},
			{Label: "Mode:", Value: modeString(cfg.Run.DryRun)},
		})
		if cfg.Run.DryRun {
			printer.DryRunBanner()
		}

		store := anki.New(cfg.Anki.URL, cfg.Anki.Timeout)
		if !store.Connected(cmd.Context()) {
			logger.Error("anki unreachable", "url", cfg.Anki.URL)
			return fmt.Errorf("cannot reach AnkiConnect at %s: is Anki running with the AnkiConnect addon?", cfg.Anki.URL)
		}
		printer.Info("Anki connection successful.")

		processor, err := ollama.New(ollama.Config{
			BaseURL:      cfg.LLM.URL,
			Model:        model,
			Template:     tk.Template,
			ExpectedKeys: tk.OutputKeys(),
			Timeout:      cfg.LLM.Timeout,
			Retries:      cfg.LLM.Retries,
			RetryDelay:   cfg.LLM.RetryDelay,
			LogPrompt:    cfg.LLM.LogPrompt,
			LogResponse:  cfg.LLM.LogResponse,
			Logger:       logger,
		})
		if err != nil {
			return err
		}

		validator, err := schema.New(tk.OutputKeys())
		if err != nil {
			return err
		}

		r, err := runner.New(store, processor, validator, runner.Config{
			Deck:         tk.Deck,
			RefField:     tk.RefField,
			DryRun:       cfg.Run.DryRun,
			SaveProgress: cfg.Run.SaveProgress,
			ProgressPath: progressPath,
		}, logger, printer)
		if err != nil {
			return err
		}

		summary, err := r.Run(cmd.Context())
		if err != nil {
			logger.Error("run aborted", "error", err)
			return err
		}

		printer.Report(ui.Summary{
			Succeeded:       summary.Succeeded,
			Failed:          summary.Failed,
			DryRun:          cfg.Run.DryRun,
			Interrupted:     summary.Interrupted,
			ProgressSaved:   cfg.Run.SaveProgress,
			ProgressUpdated: summary.ProgressUpdated,
			ProgressPath:    progressPath,
			TotalTracked:    summary.TotalTracked,
		})
		logger.Info("run finished",
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"interrupted", summary.Interrupted)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runTask, "task", "", "task name (overrides run.task in config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate and track progress without modifying notes")
}

func modeString(dryRun bool) string {
	if dryRun {
		return "DRY RUN"
	}
	return "LIVE UPDATE"
}
