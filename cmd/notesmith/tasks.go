package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/notesmith/internal/task"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the available task definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveHome()
		if err != nil {
			return err
		}

		entries, err := filepath.Glob(filepath.Join(dir.TasksPath(), "*.yaml"))
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No tasks defined. Create one with: notesmith init")
			return nil
		}

		for _, path := range entries {
			name := strings.TrimSuffix(filepath.Base(path), ".yaml")
			t, err := task.Load(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%-20s (invalid: %v)\n", name, err)
				continue
			}
			model := t.Model
			if model == "" {
				model = "(default)"
			}
			fmt.Printf("%-20s deck=%q model=%s outputs=[%s]\n",
				name, t.Deck, model, strings.Join(t.OutputKeys(), ", "))
		}
		return nil
	},
}
