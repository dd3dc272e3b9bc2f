package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/safeagree/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Connection timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	if err := rt.pool.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Database ping failed: %v\n", err)
		return 1
	}
	objects, err := rt.artifacts.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Artifact store check failed: %v\n", err)
		return 1
	}
	keys, err := rt.pool.ListArtifactKeys(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Catalog check failed: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Str("artifact_backend", rt.cfg.ArtifactBackendName()).
		Int("catalog_entries", len(keys)).
		Int("artifacts", len(objects)).
		Msg("health check passed")
	fmt.Printf("ok: %d catalog entries, %d stored artifacts (%s)\n", len(keys), len(objects), rt.cfg.ArtifactBackendName())
	return 0
}
