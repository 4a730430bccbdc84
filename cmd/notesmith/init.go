package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/notesmith/internal/anki"
	"github.com/jackzampolin/notesmith/internal/config"
	"github.com/jackzampolin/notesmith/internal/task"
	"github.com/jackzampolin/notesmith/internal/ui"
)

// defaultTemplate is the generic prompt used for wizard-created tasks. The
// JSON embeds are expanded when the task is loaded.
const defaultTemplate = `Your task is to process the provided data based on the INPUT DATA.
Generate content for the fields specified in the OUTPUT SCHEMA, following
the instructions in their descriptions.

INPUT DATA: {{inputs_json}}

OUTPUT SCHEMA: {{outputs_json}}

General Instructions:
- Output ONLY a valid JSON object.
- Ensure all fields from the OUTPUT SCHEMA are present in your response.
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a task definition",
	Long: `Init connects to Anki, walks through deck and field selection, and writes
a new task YAML file into the tasks directory. Purely a convenience; task
files can also be written by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveHome()
		if err != nil {
			return err
		}
		cfg, err := config.Load(cfgFile, dir.ConfigPath())
		if err != nil {
			return err
		}

		w := &wizard{
			in:      bufio.NewScanner(os.Stdin),
			printer: ui.New(os.Stdout),
			anki:    anki.New(cfg.Anki.URL, cfg.Anki.Timeout),
		}
		return w.run(cmd.Context(), dir.TaskPath)
	},
}

// wizard drives the interactive prompts for the init command.
type wizard struct {
	in      *bufio.Scanner
	printer *ui.Printer
	anki    *anki.Client
}

func (w *wizard) run(ctx context.Context, taskPath func(string) string) error {
	w.printer.Info("Connecting to AnkiConnect...")
	version, err := w.anki.Version(ctx)
	if err != nil {
		return fmt.Errorf("cannot reach AnkiConnect: %w (is Anki running with the addon enabled?)", err)
	}
	w.printer.Info("Connected (AnkiConnect version %d).", version)

	deck, err := w.selectDeck(ctx)
	if err != nil {
		return err
	}

	fieldNames, err := w.sampleFieldNames(ctx, deck)
	if err != nil {
		return err
	}
	w.printer.Info("Available fields: %s", strings.Join(fieldNames, ", "))

	var inputs task.OrderedMap
	inputFields, err := w.selectFields(fieldNames, "input fields (sent to the model)")
	if err != nil {
		return err
	}
	for _, f := range inputFields {
		placeholder := w.ask(fmt.Sprintf("Placeholder for %q", f), "[["+f+"]]")
		inputs.Set(f, placeholder)
	}

	var outputs task.OrderedMap
	outputFields, err := w.selectFields(fieldNames, "output fields (written back by the model)")
	if err != nil {
		return err
	}
	for _, f := range outputFields {
		instruction := w.ask(fmt.Sprintf("Instruction for %q", f), "Generated content for "+f)
		outputs.Set(f, instruction)
	}

	refField := w.ask("Reference field for logs/display", inputFields[0])
	model := w.ask("Model override (empty to use llm.default_model)", "")
	name := slugify(w.ask("Task name", slugify(deck)))

	t := &task.Task{
		Name:     name,
		Deck:     deck,
		RefField: refField,
		Model:    model,
		Inputs:   inputs,
		Outputs:  outputs,
		Template: defaultTemplate,
	}
	if err := t.Validate(); err != nil {
		return err
	}

	path := taskPath(name)
	if _, err := os.Stat(path); err == nil {
		if !strings.EqualFold(w.ask(fmt.Sprintf("%s exists, overwrite? (y/N)", path), "n"), "y") {
			return fmt.Errorf("aborted: task file %s already exists", path)
		}
	}

	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}

	w.printer.Info("Wrote %s", path)
	w.printer.Info("Run it with: notesmith run --task %s", name)
	return nil
}

// selectDeck lists the collection's decks and asks for one by number.
func (w *wizard) selectDeck(ctx context.Context) (string, error) {
	decks, err := w.anki.DeckNames(ctx)
	if err != nil {
		return "", err
	}
	if len(decks) == 0 {
		return "", fmt.Errorf("no decks found in the Anki collection")
	}
	sort.Strings(decks)

	w.printer.Info("Available decks:")
	for i, name := range decks {
		w.printer.Info("  %d. %s", i+1, name)
	}

	for {
		answer := w.ask("Select a deck by number", "")
		idx, err := strconv.Atoi(answer)
		if err != nil || idx < 1 || idx > len(decks) {
			w.printer.Warn("Enter a number between 1 and %d.", len(decks))
			continue
		}
		return decks[idx-1], nil
	}
}

// sampleFieldNames fetches one note from the deck and returns its field
// names in display order.
func (w *wizard) sampleFieldNames(ctx context.Context, deck string) ([]string, error) {
	ids, err := w.anki.FindNotes(ctx, anki.DeckQuery(deck))
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("deck %q has no notes to sample fields from", deck)
	}

	notes, err := w.anki.NotesInfo(ctx, ids[:1])
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 || len(notes[0].Fields) == 0 {
		return nil, fmt.Errorf("could not determine note fields for deck %q", deck)
	}

	names := make([]string, 0, len(notes[0].Fields))
	for name := range notes[0].Fields {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return notes[0].Fields[names[i]].Order < notes[0].Fields[names[j]].Order
	})
	return names, nil
}

// selectFields asks for a comma-separated list of field numbers, or "all".
func (w *wizard) selectFields(fieldNames []string, what string) ([]string, error) {
	w.printer.Info("Select %s:", what)
	for i, name := range fieldNames {
		w.printer.Info("  %d. %s", i+1, name)
	}

	for {
		answer := w.ask(`Numbers separated by commas, or "all"`, "")
		if answer == "" {
			w.printer.Warn("At least one field is required.")
			continue
		}
		if strings.EqualFold(answer, "all") {
			return append([]string(nil), fieldNames...), nil
		}

		seen := make(map[int]bool)
		var picked []string
		valid := true
		for _, part := range strings.Split(answer, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 1 || idx > len(fieldNames) {
				w.printer.Warn("Invalid choice %q (expected 1-%d).", part, len(fieldNames))
				valid = false
				break
			}
			if !seen[idx] {
				seen[idx] = true
				picked = append(picked, fieldNames[idx-1])
			}
		}
		if valid && len(picked) > 0 {
			return picked, nil
		}
	}
}

// ask prompts for one line of input, returning def when the answer is empty.
func (w *wizard) ask(prompt, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", prompt, def)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	if !w.in.Scan() {
		return def
	}
	answer := strings.TrimSpace(w.in.Text())
	if answer == "" {
		return def
	}
	return answer
}

var slugPattern = regexp.MustCompile(`[^a-z0-9_]+`)

// slugify normalizes a string into a file-safe task name.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugPattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed_task"
	}
	return s
}
