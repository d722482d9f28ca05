// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command lexserve is the word-lookup synthesis service's HTTP/SSE
// server.
//
// Usage:
//
//	lexserve serve --config config.yaml
//	lexserve validate --config config.yaml
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/mkbabb/lexserve/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve    ServeCmd    `cmd:"" help:"Start the lookup server."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"lexserve.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)."`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)."`
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("lexserve version %s\n", version)
	return nil
}

// ValidateCmd loads and validates a config file without starting the
// server.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()
	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Printf("config %s is valid\n", cli.Config)
	fmt.Printf("  providers: %d\n", len(cfg.Providers))
	fmt.Printf("  cache namespaces: %d\n", len(cfg.Cache.Namespaces))
	fmt.Printf("  semantic enabled: %v\n", cfg.Resolver.SemanticEnabled)
	return nil
}

// ServeCmd starts the HTTP/SSE lookup server.
type ServeCmd struct {
	Addr  string `help:"Override the configured listen address."`
	Watch bool   `help:"Watch the config file and re-read it on change; the running server keeps the settings it started with."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	defer loader.Close()

	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	logCleanup, err := reinitLoggerFromConfig(cli, cfg.Logging)
	if err != nil {
		return err
	}
	if logCleanup != nil {
		defer logCleanup()
	}

	logger := slog.Default()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer a.Close()

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("config watch error", "error", err)
			}
		}()
	}

	logger.Info("lexserve server ready", "addr", cfg.Server.Addr)
	fmt.Printf("\nlexserve listening on http://%s\n", cfg.Server.Addr)
	fmt.Printf("  health:  http://%s/healthz\n", cfg.Server.Addr)
	fmt.Printf("  metrics: http://%s/metrics\n", cfg.Server.Addr)
	fmt.Println("\nPress Ctrl+C to stop")

	return a.server.Start(ctx)
}

// reinitLoggerFromConfig re-applies the config file's logging section
// when neither a CLI flag nor an env var set the level/file/format, so a
// config-only deployment still gets its logging section honored. The
// returned cleanup closes the log file, if one was opened.
func reinitLoggerFromConfig(cli *CLI, cfg config.LoggerConfig) (func(), error) {
	if cli.LogLevel != "" || cli.LogFile != "" || cli.LogFormat != "" {
		return nil, nil
	}
	if os.Getenv(LogLevelEnvVar) != "" || os.Getenv(LogFileEnvVar) != "" || os.Getenv(LogFormatEnvVar) != "" {
		return nil, nil
	}
	return initLoggerFromConfig(cfg)
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("lexserve"),
		kong.Description("lexserve - word-lookup synthesis service"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
