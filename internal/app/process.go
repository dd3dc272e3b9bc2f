package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"horse.fit/safeagree/internal/cli"
	"horse.fit/safeagree/internal/content"
	"horse.fit/safeagree/internal/policy"
)

func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	userID := fs.Int64("user", 0, "User ID that receives the entry (required)")
	link := fs.String("link", "", "Policy URL to fetch")
	file := fs.String("file", "", "Local policy document (txt, pdf, docx)")
	company := fs.String("company", "", "Company name override")
	timeout := fs.Duration("timeout", 3*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "process does not accept positional arguments")
		return 2
	}
	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "--user is required")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	req, err := buildProcessRequest(*userID, *link, *file, *company)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	rt, err := openRuntime(envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := rt.orchestrator.ProcessDocument(ctx, req)
	if err != nil {
		rt.logger.Error().Err(err).Int64("user_id", *userID).Msg("process failed")
		fmt.Fprintf(os.Stderr, "Failed to process document: %v\n", err)
		if policy.IsUserError(err) {
			return 2
		}
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	if err := printSummary(result.Entry, result.Artifact, &result.Cached); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
		return 1
	}
	return 0
}

func buildProcessRequest(userID int64, link, file, company string) (policy.ProcessRequest, error) {
	link = strings.TrimSpace(link)
	file = strings.TrimSpace(file)
	switch {
	case link != "" && file != "":
		return policy.ProcessRequest{}, fmt.Errorf("--link and --file are mutually exclusive")
	case link == "" && file == "":
		return policy.ProcessRequest{}, fmt.Errorf("one of --link or --file is required")
	}

	req := policy.ProcessRequest{UserID: userID, CompanyName: company}
	if link != "" {
		req.Input = content.LinkInput(link)
		return req, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return policy.ProcessRequest{}, fmt.Errorf("read %s: %w", file, err)
	}
	name := filepath.Base(file)
	req.Input = content.FileInput(name, mime.TypeByExtension(filepath.Ext(name)), data)
	req.FileName = name
	return req, nil
}

func printSummary(entry policy.CatalogEntry, art policy.SummaryArtifact, cached *bool) error {
	rows := [][]string{
		{"entry_id", strconv.FormatInt(entry.ID, 10)},
		{"company", entry.CompanyName},
		{"fingerprint", entry.Fingerprint.Hex()},
		{"source", entry.Link()},
		{"language", entry.Language},
		{"last_processed_at", formatUTCTimestamp(entry.LastProcessedAt)},
		{"summarizer", strings.TrimSpace(art.Summarizer + " " + art.Model)},
		{"sentiment", art.Sentiment},
	}
	if cached != nil {
		rows = append(rows, []string{"cached", strconv.FormatBool(*cached)})
	}
	if err := writeTable([]string{"field", "value"}, rows); err != nil {
		return err
	}

	fmt.Println()
	for _, section := range art.Sections {
		fmt.Printf("## %s\n%s\n\n", section.Title, section.Content)
	}
	if len(art.KeyPoints) > 0 {
		fmt.Println("Key points:")
		for _, point := range art.KeyPoints {
			fmt.Printf("  - %s\n", point)
		}
	}
	return nil
}

func runEntry(args []string) int {
	fs := flag.NewFlagSet("entry", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	entryID := fs.Int64("id", 0, "Catalog entry ID (required)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *entryID <= 0 {
		fmt.Fprintln(os.Stderr, "--id is required")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	rt, err := openRuntime(envLoader, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	view, err := rt.orchestrator.GetEntry(ctx, *entryID)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Entry %d not found\n", *entryID)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to load entry: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(view); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	if err := printSummary(view.Entry, view.Artifact, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render summary: %v\n", err)
		return 1
	}
	return 0
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	limit := fs.Int("limit", policy.DefaultHistoryLimit, "Maximum entries to list")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table, json or yaml")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON, outputFormatYAML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	rt, err := openRuntime(envLoader, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	entries, err := rt.orchestrator.History(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load history: %v\n", err)
		return 1
	}

	if err := renderEntries(outputFormat, entries); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render history: %v\n", err)
		return 1
	}
	return 0
}

func renderEntries(format string, entries []policy.CatalogEntry) error {
	switch format {
	case outputFormatJSON:
		return printJSON(entries)
	case outputFormatYAML:
		return writeYAML(os.Stdout, entries)
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			truncateForTable(entry.CompanyName, 28),
			entry.Language,
			formatUTCTimestamp(entry.LastProcessedAt),
			truncateForTable(entry.Link(), 60),
		})
	}
	return writeTable([]string{"id", "company", "lang", "last_processed_at", "source"}, rows)
}
