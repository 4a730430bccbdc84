package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/notesmith/internal/home"
	"github.com/jackzampolin/notesmith/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "notesmith",
	Short: "Enrich Anki notes with a locally hosted language model",
	Long: `Notesmith feeds each note's fields through a local Ollama model and
writes the structured response back into the note.

Runs are resumable: every committed note is recorded in a progress file,
so an interrupted or partially failed run picks up where it left off.
Task definitions (deck, input fields, output schema, prompt template)
live as YAML files under the notesmith home directory.`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ~/.notesmith/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "notesmith home directory (default: ~/.notesmith)",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveHome builds the home directory handle from the --home flag and
// makes sure its layout exists.
func resolveHome() (*home.Dir, error) {
	dir, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := dir.EnsureExists(); err != nil {
		return nil, err
	}
	return dir, nil
}
