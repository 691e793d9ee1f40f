package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bizdash/internal/backend"
	"bizdash/internal/cli"
	"bizdash/internal/config"
	"bizdash/internal/dashboard"
	"bizdash/internal/export"
	"bizdash/internal/log"
	"bizdash/internal/session"
)

var (
	outPath string
	query   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bizctl",
		Short:         "Maintenance commands for the bizdash dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	exportCmd := &cobra.Command{
		Use:   "export <page>",
		Short: "Write a page's filtered view as a zip of CSV files",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <page>-<date>.zip, - for stdout)")
	exportCmd.Flags().StringVarP(&query, "query", "q", "", "view state as a URL query, e.g. 'year=2024&group=category'")

	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Session maintenance"}
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "gc",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsGC,
	})

	usersCmd := &cobra.Command{Use: "users", Short: "User helpers"}
	usersCmd.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print the bcrypt hash to store in the Users table",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHashPassword,
	})

	rootCmd.AddCommand(exportCmd, sessionsCmd, usersCmd)

	if err := rootCmd.Execute(); err != nil {
		cli.Fatal(err)
	}
}

func loadConfig() (*config.Config, *log.Logger, error) {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so that `export -o -` keeps stdout clean.
	return cfg, cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr), nil
}

func runExport(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("invalid --query: %w", err)
	}

	ctx := cmd.Context()
	tables, err := backend.NewFactory(logger).Tables(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize data backend: %w", err)
	}
	defer func() { err = errors.Join(err, backend.Close(tables.Cleanup)) }()

	pages := dashboard.NewRegistry(dashboard.NewDatasets(tables.Client, logger), cfg.Language(), logger)
	page, err := pages.Get(args[0])
	if err != nil {
		return err
	}
	wb, err := page.Workbook(ctx, q)
	if err != nil {
		return fmt.Errorf("compute %s: %w", args[0], err)
	}

	out, name, closeOut, err := openOutput(args[0])
	if err != nil {
		return err
	}
	if err := export.NewZipWriter(out).Write(ctx, wb); err != nil {
		_ = closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	logger.Info("Export written", log.FieldPage, args[0], "file", name, "sheets", len(wb.Sheets))
	return nil
}

func openOutput(slug string) (io.Writer, string, func() error, error) {
	name := outPath
	if name == "-" {
		return os.Stdout, "stdout", func() error { return nil }, nil
	}
	if name == "" {
		name = fmt.Sprintf("%s-%s.zip", slug, time.Now().Format("2006-01-02"))
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, "", nil, fmt.Errorf("create output: %w", err)
	}
	return f, name, f.Close, nil
}

func runSessionsGC(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	sessions, err := backend.NewFactory(logger).Sessions(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize session backend: %w", err)
	}
	defer func() { _ = backend.Close(sessions.Cleanup) }()

	if sessions.Repo == nil {
		logger.Warn("Session backend is in memory, nothing to collect", "backend", cfg.SessionBackend)
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	n, err := session.NewManager(sessions.Store, cfg.SessionTTL, logger).GC(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
	return nil
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	password := ""
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("empty password")
	}
	hash, err := session.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
