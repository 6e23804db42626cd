package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/promptlab/internal/config"
	"github.com/kalambet/promptlab/internal/input"
	"github.com/kalambet/promptlab/internal/storage"
)

// historyLimit is the number of records the history view shows by default.
const historyLimit = 20

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate [text]",
	Short: "Generate a structured prompt from a task description",
	Long: `Generate a structured prompt from a task description and save it to history.

Examples:
  promptlab generate "write a cover letter for a backend role"
  promptlab generate --file ./brief.pdf
  promptlab generate --url https://example.com/ticket/42
  echo "summarize this thread" | promptlab generate --stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := sourceFromFlags(cmd, args)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		text, err := input.NewResolver(nil).Resolve(cmd.Context(), src)
		if errors.Is(err, input.ErrEmptyInput) {
			return fmt.Errorf("nothing to generate from: input is empty")
		}
		if err != nil {
			return err
		}

		if !asJSON {
			printStep("Generating prompt...")
		}
		rec, err := p.Generate(cmd.Context(), text)
		return reportRecord(cmd.OutOrStdout(), rec, err, asJSON)
	},
}

func init() {
	generateCmd.Flags().String("file", "", "read the task description from a text or PDF file")
	generateCmd.Flags().String("url", "", "fetch the task description from a web page")
	generateCmd.Flags().Bool("stdin", false, "read the task description from standard input")
	generateCmd.Flags().Bool("json", false, "print the saved record as JSON")
}

// sourceFromFlags picks exactly one input source from args and flags.
func sourceFromFlags(cmd *cobra.Command, args []string) (input.Source, error) {
	file, _ := cmd.Flags().GetString("file")
	url, _ := cmd.Flags().GetString("url")
	stdin, _ := cmd.Flags().GetBool("stdin")

	var sources []input.Source
	if len(args) > 0 {
		sources = append(sources, input.Source{Kind: input.KindText, Text: strings.Join(args, " ")})
	}
	if file != "" {
		sources = append(sources, input.Source{Kind: input.KindFile, Path: file})
	}
	if url != "" {
		sources = append(sources, input.Source{Kind: input.KindURL, URL: url})
	}
	if stdin {
		sources = append(sources, input.Source{Kind: input.KindStdin, Reader: cmd.InOrStdin()})
	}

	switch len(sources) {
	case 0:
		return input.Source{}, fmt.Errorf("a task description is required: pass text, --file, --url or --stdin")
	case 1:
		return sources[0], nil
	default:
		return input.Source{}, fmt.Errorf("use only one of text, --file, --url or --stdin")
	}
}

// reportRecord prints a freshly generated record. A record that could not
// be saved is still printed, followed by a warning.
func reportRecord(w io.Writer, rec storage.PromptRecord, err error, asJSON bool) error {
	if err != nil && !errors.Is(err, storage.ErrPersist) {
		return err
	}

	if asJSON {
		if jerr := writeJSON(w, rec); jerr != nil {
			return jerr
		}
	} else {
		fmt.Fprintln(w, rec.GeneratedPrompt)
	}

	if err != nil {
		printWarning("prompt was not saved to history: %v", err)
		return nil
	}
	if !asJSON {
		printSuccess("Saved as %s", shortID(rec.ID))
	}
	return nil
}

// --- history / favorites / show ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent prompts, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		records, err := p.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), nonNil(records))
		}
		printRecordList(cmd.OutOrStdout(), records, "No prompts yet.")
		return nil
	},
}

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "List favorite prompts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		records, err := p.Favorites(cmd.Context())
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), nonNil(records))
		}
		printRecordList(cmd.OutOrStdout(), records, "No favorites yet.")
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		rec, err := find(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), rec)
		}
		printRecord(cmd.OutOrStdout(), rec)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", historyLimit, "maximum number of prompts to list")
	historyCmd.Flags().Bool("json", false, "print records as JSON")
	favoritesCmd.Flags().Bool("json", false, "print records as JSON")
	showCmd.Flags().Bool("json", false, "print the record as JSON")
}

func nonNil(records []storage.PromptRecord) []storage.PromptRecord {
	if records == nil {
		return []storage.PromptRecord{}
	}
	return records
}

// find resolves id against every record p holds.
func find(ctx context.Context, p prompts, id string) (storage.PromptRecord, error) {
	records, err := p.All(ctx)
	if err != nil {
		return storage.PromptRecord{}, err
	}
	return lookup(records, id)
}

// lookup finds a record by full id or by a unique id prefix, as printed
// by the list commands.
func lookup(records []storage.PromptRecord, id string) (storage.PromptRecord, error) {
	var matches []storage.PromptRecord
	for _, r := range records {
		if r.ID == id {
			return r, nil
		}
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return storage.PromptRecord{}, fmt.Errorf("prompt %s: %w", id, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return storage.PromptRecord{}, fmt.Errorf("prompt id %q is ambiguous (%d matches)", id, len(matches))
	}
}

// warnPersist downgrades a persistence failure to a warning.
func warnPersist(err error) error {
	if errors.Is(err, storage.ErrPersist) {
		printWarning("change was not saved: %v", err)
		return nil
	}
	return err
}

// --- favorite / rate / delete / regenerate ---

var favoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle the favorite flag of a prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		rec, err := find(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		rec, err = p.ToggleFavorite(cmd.Context(), rec.ID)
		if err := warnPersist(err); err != nil {
			return err
		}

		if !rec.IsFavorite {
			printSuccess("Removed %s from favorites", shortID(rec.ID))
		} else {
			printSuccess("Added %s to favorites", shortID(rec.ID))
		}
		return nil
	},
}

var rateCmd = &cobra.Command{
	Use:   "rate <id> <1-5>",
	Short: "Rate a prompt from 1 to 5",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, err := strconv.Atoi(args[1])
		if err != nil || rating < storage.MinRating || rating > storage.MaxRating {
			return fmt.Errorf("rating must be a number between %d and %d", storage.MinRating, storage.MaxRating)
		}

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		rec, err := find(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		_, err = p.SetRating(cmd.Context(), rec.ID, rating)
		if err := warnPersist(err); err != nil {
			return err
		}

		printSuccess("Rated %s %d/%d", shortID(rec.ID), rating, storage.MaxRating)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a prompt from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		rec, err := find(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}
		if err := warnPersist(p.Delete(cmd.Context(), rec.ID)); err != nil {
			return err
		}

		printSuccess("Deleted %s", shortID(rec.ID))
		return nil
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Generate a new prompt from a saved prompt's original input",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		src, err := find(cmd.Context(), p, args[0])
		if err != nil {
			return err
		}

		if !asJSON {
			printStep("Regenerating prompt for %s...", shortID(src.ID))
		}
		rec, err := p.Regenerate(cmd.Context(), src.ID)
		return reportRecord(cmd.OutOrStdout(), rec, err, asJSON)
	},
}

func init() {
	regenerateCmd.Flags().Bool("json", false, "print the saved record as JSON")
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the prompt history as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		p, err := openPrompts(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		records, err := p.All(cmd.Context())
		if err != nil {
			return err
		}

		var writer io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		if err := storage.Export(writer, records, format); err != nil {
			return err
		}

		if output != "" {
			printSuccess("Exported %d prompts to %s", len(records), output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", storage.FormatJSON, "output format: json or yaml")
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			line := fmt.Sprintf("  %s = %s", colorize(colorBold, k.Key), k.Value)
			if k.Overridden {
				line += colorize(colorDim, fmt.Sprintf(" (from %s)", k.EnvVar))
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		stored, err := config.SetKey(key, value)
		if err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, stored)
		return nil
	},
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Store the generation API key in the local secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(strings.TrimSpace(args[0])); err != nil {
			return err
		}
		printSuccess("API key saved")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetKeyCmd)
}
