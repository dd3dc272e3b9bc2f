package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/safeagree/internal/auth"
	"horse.fit/safeagree/internal/cli"
	"horse.fit/safeagree/internal/db"
	"horse.fit/safeagree/internal/policy"
)

// passwordEnvVar supplies the password when --password is omitted.
const passwordEnvVar = "SAFEAGREE_USER_PASSWORD"

func runUser(args []string) int {
	if len(args) == 0 {
		printUserUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUserUsage()
		return 0
	case "create":
		return runUserCreate(args[1:])
	case "delete":
		return runUserDelete(args[1:])
	case "lookup":
		return runUserLookup(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown user command: %s\n\n", args[0])
		printUserUsage()
		return 2
	}
}

func printUserUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  safeagree user create --email ADDRESS [--password PASSWORD]")
	fmt.Fprintln(os.Stderr, "  safeagree user delete --id USER_ID")
	fmt.Fprintln(os.Stderr, "  safeagree user lookup --email ADDRESS [--password PASSWORD] [--format table|json]")
}

func runUserCreate(args []string) int {
	fs := flag.NewFlagSet("user create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Password; defaults to $"+passwordEnvVar)
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	normalizedEmail, err := auth.NormalizeEmail(*email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--email: %v\n", err)
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	secret := passwordFromFlagOrEnv(*password)
	if strings.TrimSpace(secret) == "" {
		fmt.Fprintf(os.Stderr, "--password or $%s is required\n", passwordEnvVar)
		return 2
	}

	_, logger, pool, err := openPool(envLoader, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if existing, err := pool.GetUserByEmail(ctx, normalizedEmail); err == nil {
		fmt.Fprintf(os.Stderr, "A user with email %s already exists (id %d)\n", normalizedEmail, existing.UserID)
		return 1
	} else if !errors.Is(err, policy.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Failed to check existing users: %v\n", err)
		return 1
	}

	hash, err := auth.HashPassword(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid password: %v\n", err)
		return 2
	}

	user, err := pool.CreateUser(ctx, normalizedEmail, hash)
	if err != nil {
		if errors.Is(err, db.ErrEmailTaken) {
			fmt.Fprintf(os.Stderr, "A user with email %s already exists\n", normalizedEmail)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		return 1
	}
	logger.Info().Int64("user_id", user.UserID).Msg("user created")

	if outputFormat == outputFormatJSON {
		if err := printJSON(user); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Printf("Created user %d (%s)\n", user.UserID, user.Email)
	return 0
}

func runUserDelete(args []string) int {
	fs := flag.NewFlagSet("user delete", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	userID := fs.Int64("id", 0, "User ID (required)")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "--id is required")
		return 2
	}

	_, logger, pool, err := openPool(envLoader, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	removed, err := pool.DeleteUser(ctx, *userID)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "User %d not found\n", *userID)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to delete user: %v\n", err)
		return 1
	}
	logger.Info().Int64("user_id", *userID).Int64("library_entries", removed).Msg("user deleted")
	fmt.Printf("Deleted user %d and %d library entries\n", *userID, removed)
	return 0
}

// runUserLookup resolves an email to the user id the API expects in
// X-User-ID. When a password is supplied it must match.
func runUserLookup(args []string) int {
	fs := flag.NewFlagSet("user lookup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	email := fs.String("email", "", "Email address (required)")
	password := fs.String("password", "", "Password to verify; defaults to $"+passwordEnvVar+" when set")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	normalizedEmail, err := auth.NormalizeEmail(*email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "--email: %v\n", err)
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable, outputFormatTable, outputFormatJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	_, _, pool, err := openPool(envLoader, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	user, err := pool.GetUserByEmail(ctx, normalizedEmail)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "No user with email %s\n", normalizedEmail)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed to look up user: %v\n", err)
		return 1
	}
	if secret := passwordFromFlagOrEnv(*password); strings.TrimSpace(secret) != "" {
		if !auth.VerifyPassword(secret, user.PasswordHash) {
			fmt.Fprintln(os.Stderr, "Password does not match")
			return 1
		}
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(user); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Printf("%d\t%s\t%s\n", user.UserID, user.Email, formatUTCTimestamp(user.CreatedAt))
	return 0
}

func passwordFromFlagOrEnv(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return os.Getenv(passwordEnvVar)
}
