package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/safeagree/internal/cli"
	"horse.fit/safeagree/internal/policy"
)

type libraryExport struct {
	UserID int64    `yaml:"user_id" json:"user_id"`
	Links  []string `yaml:"links" json:"links"`
}

type libraryFlags struct {
	fs        *flag.FlagSet
	envLoader *cli.EnvLoader
	userID    *int64
	timeout   *time.Duration
	format    *string
}

func newLibraryFlags(name string, defaultTimeout time.Duration, formatHelp string) *libraryFlags {
	fs := flag.NewFlagSet("library "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	f := &libraryFlags{
		fs:        fs,
		envLoader: cli.AddEnvFlag(fs, ".env", "Path to the .env file"),
		userID:    fs.Int64("user", 0, "Library owner user ID (required)"),
		timeout:   fs.Duration("timeout", defaultTimeout, "Command timeout"),
		format:    new(string),
	}
	if formatHelp != "" {
		f.format = fs.String("format", "", formatHelp)
	}
	return f
}

// parse returns a non-negative exit code when the command should stop.
func (f *libraryFlags) parse(args []string) int {
	if err := f.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s does not accept positional arguments\n", f.fs.Name())
		return 2
	}
	if *f.userID <= 0 {
		fmt.Fprintln(os.Stderr, "--user is required")
		return 2
	}
	return -1
}

func runLibrary(args []string) int {
	if len(args) == 0 {
		printLibraryUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printLibraryUsage()
		return 0
	case "add":
		return runLibraryAdd(args[1:])
	case "list":
		return runLibraryList(args[1:])
	case "remove", "rm":
		return runLibraryRemove(args[1:])
	case "refresh":
		return runLibraryRefresh(args[1:])
	case "import":
		return runLibraryImport(args[1:])
	case "export":
		return runLibraryExport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown library command: %s\n\n", args[0])
		printLibraryUsage()
		return 2
	}
}

func printLibraryUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  safeagree library <add|list|remove|refresh|import|export> --user ID [flags]")
}

func runLibraryAdd(args []string) int {
	f := newLibraryFlags("add", 30*time.Second, "")
	entryID := f.fs.Int64("entry", 0, "Catalog entry ID to add (required)")
	if code := f.parse(args); code >= 0 {
		return code
	}
	if *entryID <= 0 {
		fmt.Fprintln(os.Stderr, "--entry is required")
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		if err := lib.AddExisting(ctx, *f.userID, *entryID); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to add entry: %v\n", err)
			return exitCodeFor(err)
		}
		fmt.Printf("Added entry %d to library of user %d\n", *entryID, *f.userID)
		return 0
	})
}

func runLibraryList(args []string) int {
	f := newLibraryFlags("list", 30*time.Second, "Output format: table, json or yaml")
	if code := f.parse(args); code >= 0 {
		return code
	}
	outputFormat, err := parseOutputFormat(*f.format, outputFormatTable, outputFormatTable, outputFormatJSON, outputFormatYAML)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		items, err := lib.List(ctx, *f.userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list library: %v\n", err)
			return exitCodeFor(err)
		}
		if err := renderLibrary(outputFormat, items); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render library: %v\n", err)
			return 1
		}
		return 0
	})
}

func runLibraryRemove(args []string) int {
	f := newLibraryFlags("remove", 30*time.Second, "")
	entryID := f.fs.Int64("entry", 0, "Catalog entry ID to remove (required)")
	if code := f.parse(args); code >= 0 {
		return code
	}
	if *entryID <= 0 {
		fmt.Fprintln(os.Stderr, "--entry is required")
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		removed, err := lib.Remove(ctx, *f.userID, *entryID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to remove entry: %v\n", err)
			return exitCodeFor(err)
		}
		if !removed {
			fmt.Printf("Entry %d was not in the library of user %d\n", *entryID, *f.userID)
			return 0
		}
		fmt.Printf("Removed entry %d from library of user %d\n", *entryID, *f.userID)
		return 0
	})
}

func runLibraryRefresh(args []string) int {
	f := newLibraryFlags("refresh", 30*time.Minute, "Output format: table or json")
	if code := f.parse(args); code >= 0 {
		return code
	}
	outputFormat, err := parseOutputFormat(*f.format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		report, err := lib.RefreshAll(ctx, *f.userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to refresh library: %v\n", err)
			return exitCodeFor(err)
		}
		if outputFormat == outputFormatJSON {
			if err := printJSON(report); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
				return 1
			}
			return 0
		}

		rows := make([][]string, 0, len(report.Items))
		for _, item := range report.Items {
			newID := ""
			if item.NewEntryID > 0 {
				newID = strconv.FormatInt(item.NewEntryID, 10)
			}
			rows = append(rows, []string{
				strconv.FormatInt(item.EntryID, 10),
				truncateForTable(item.CompanyName, 28),
				string(item.Status),
				newID,
				truncateForTable(item.Message, 60),
			})
		}
		if err := writeTable([]string{"entry_id", "company", "status", "new_entry_id", "message"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render refresh report: %v\n", err)
			return 1
		}
		return 0
	})
}

func runLibraryImport(args []string) int {
	f := newLibraryFlags("import", 30*time.Minute, "Output format: table or json")
	input := f.fs.String("file", "-", "Newline-separated link list, or - for stdin")
	if code := f.parse(args); code >= 0 {
		return code
	}
	outputFormat, err := parseOutputFormat(*f.format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	text, err := readLinkList(*input, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		report, err := lib.ImportFromLinkList(ctx, *f.userID, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import links: %v\n", err)
			return exitCodeFor(err)
		}
		if outputFormat == outputFormatJSON {
			if err := printJSON(report); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
				return 1
			}
			return 0
		}

		rows := make([][]string, 0, len(report.Results))
		for _, result := range report.Results {
			entryID := ""
			if result.EntryID > 0 {
				entryID = strconv.FormatInt(result.EntryID, 10)
			}
			rows = append(rows, []string{
				strconv.Itoa(result.Line),
				truncateForTable(result.Link, 60),
				string(result.Status),
				entryID,
				truncateForTable(result.Message, 60),
			})
		}
		if err := writeTable([]string{"line", "link", "status", "entry_id", "message"}, rows); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render import report: %v\n", err)
			return 1
		}
		fmt.Printf("\n%d of %d links imported\n", report.Succeeded(), len(report.Results))
		return 0
	})
}

func runLibraryExport(args []string) int {
	f := newLibraryFlags("export", 30*time.Second, "Output format: text, yaml or json")
	output := f.fs.String("output", "-", "Destination file, or - for stdout")
	if code := f.parse(args); code >= 0 {
		return code
	}
	outputFormat, err := parseOutputFormat(*f.format, outputFormatText, outputFormatText, outputFormatYAML, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	return withLibrary(f, func(ctx context.Context, lib *policy.Library) int {
		links, err := lib.Export(ctx, *f.userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to export library: %v\n", err)
			return exitCodeFor(err)
		}

		var w io.Writer = os.Stdout
		if dest := strings.TrimSpace(*output); dest != "" && dest != "-" {
			file, err := os.Create(dest)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", dest, err)
				return 1
			}
			defer file.Close()
			w = file
		}

		if err := writeLibraryExport(w, outputFormat, libraryExport{UserID: *f.userID, Links: links}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write export: %v\n", err)
			return 1
		}
		return 0
	})
}

func withLibrary(f *libraryFlags, run func(ctx context.Context, lib *policy.Library) int) int {
	rt, err := openRuntime(f.envLoader, 10*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *f.timeout)
	defer cancel()

	return run(ctx, rt.library)
}

func exitCodeFor(err error) int {
	if policy.IsUserError(err) {
		return 2
	}
	return 1
}

func readLinkList(path string, stdin io.Reader) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(raw), nil
}

func writeLibraryExport(w io.Writer, format string, export libraryExport) error {
	switch format {
	case outputFormatYAML:
		return writeYAML(w, export)
	case outputFormatJSON:
		return writeJSON(w, export)
	default:
		for _, link := range export.Links {
			if _, err := fmt.Fprintln(w, link); err != nil {
				return err
			}
		}
		return nil
	}
}

func renderLibrary(format string, items []policy.LibraryItem) error {
	switch format {
	case outputFormatJSON:
		return printJSON(items)
	case outputFormatYAML:
		return writeYAML(os.Stdout, items)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.EntryID, 10),
			truncateForTable(item.CompanyName, 28),
			formatUTCTimestamp(item.LastProcessedAt),
			truncateForTable(item.SourceLink, 60),
		})
	}
	return writeTable([]string{"entry_id", "company", "last_processed_at", "source"}, rows)
}
