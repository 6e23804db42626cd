package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/promptlab/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// truncate shortens s to at most n runes, appending "..." when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func ratingLabel(r storage.PromptRecord) string {
	if !r.Rated() {
		return ""
	}
	return strings.Repeat("★", *r.Rating) + strings.Repeat("☆", storage.MaxRating-*r.Rating)
}

// printRecordLine writes the one-line list form of r.
func printRecordLine(w io.Writer, r storage.PromptRecord) {
	fav := " "
	if r.IsFavorite {
		fav = colorize(colorYellow, "♥")
	}
	fmt.Fprintf(w, "%s %s  %s  %s",
		fav,
		colorize(colorCyan, shortID(r.ID)),
		formatTimestamp(r.Timestamp),
		truncate(r.OriginalInput, 60),
	)
	if label := ratingLabel(r); label != "" {
		fmt.Fprintf(w, "  %s", label)
	}
	fmt.Fprintln(w)
}

// printRecord writes the full form of r.
func printRecord(w io.Writer, r storage.PromptRecord) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "ID:"), r.ID)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Created:"), formatTimestamp(r.Timestamp))
	if r.IsFavorite {
		fmt.Fprintf(w, "%s yes\n", colorize(colorBold, "Favorite:"))
	}
	if label := ratingLabel(r); label != "" {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Rating:"), label)
	}
	fmt.Fprintf(w, "\n%s\n%s\n", colorize(colorBold, "Input:"), r.OriginalInput)
	fmt.Fprintf(w, "\n%s\n%s\n", colorize(colorBold, "Prompt:"), r.GeneratedPrompt)
}

func printRecordList(w io.Writer, records []storage.PromptRecord, empty string) {
	if len(records) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, r := range records {
		printRecordLine(w, r)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
