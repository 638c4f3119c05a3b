package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/codebook/internal/api"
	"github.com/pbaille/codebook/internal/config"
	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/lock"
	"github.com/pbaille/codebook/internal/logging"
	"github.com/pbaille/codebook/internal/store"
	"github.com/pbaille/codebook/internal/workspace"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the settings shared by all commands
type app struct {
	cfg       config.Config
	dbPath    string
	redisURL  string
	logLevel  string
	logFormat string
}

func newRootCmd(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:          "codebook",
		Short:        "Tag interview transcripts with hierarchical categories",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(cmd.ErrOrStderr(), logging.ParseLevel(a.logLevel), logging.ParseFormat(a.logFormat))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.dbPath, "db", cfg.DBPath, "database path")
	flags.StringVar(&a.redisURL, "redis", cfg.RedisURL, "redis URL for cross-process project locks")
	flags.StringVar(&a.logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", cfg.LogFormat, "log format (text, json)")

	rootCmd.AddCommand(a.initCmd())
	rootCmd.AddCommand(a.categoriesCmd())
	rootCmd.AddCommand(a.interviewCmd())
	rootCmd.AddCommand(a.assignCmd())
	rootCmd.AddCommand(a.clearCmd())
	rootCmd.AddCommand(a.statsCmd())
	rootCmd.AddCommand(a.exportCmd())
	rootCmd.AddCommand(a.importCmd())
	rootCmd.AddCommand(a.verifyCmd())
	rootCmd.AddCommand(a.serveCmd())

	return rootCmd
}

func (a *app) getStore() (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(a.dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(a.dbPath)
}

// getLocker returns the redis locker when a URL is configured and otherwise
// keeps the leases in the project database itself
func (a *app) getLocker(s *store.Store) (lock.Locker, func(), error) {
	if a.redisURL == "" {
		l, err := lock.NewSQLite(s.DB(), a.cfg.LockTTL)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	}
	r, err := lock.NewRedis(a.redisURL, a.cfg.LockTTL)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { r.Close() }, nil
}

// openWorkspace loads the project of the database; the returned func closes
// everything it opened
func (a *app) openWorkspace() (*workspace.Workspace, func(), error) {
	s, err := a.getStore()
	if err != nil {
		return nil, nil, err
	}
	l, closeLocker, err := a.getLocker(s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	closeAll := func() {
		closeLocker()
		s.Close()
	}

	ws, err := workspace.Open(s, l)
	if err != nil {
		closeAll()
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w (run 'codebook init' first)", err)
		}
		return nil, nil, err
	}
	return ws, closeAll, nil
}

func (a *app) initCmd() *cobra.Command {
	var name, codebookPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty project in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			h := domain.NewHierarchy()
			if codebookPath != "" {
				var err error
				if h, err = readCodebook(codebookPath); err != nil {
					return err
				}
			}

			s, err := a.getStore()
			if err != nil {
				return err
			}
			defer s.Close()
			l, closeLocker, err := a.getLocker(s)
			if err != nil {
				return err
			}
			defer closeLocker()

			ws, err := workspace.Init(cmd.Context(), s, l, name, h)
			if err != nil {
				return err
			}
			p := ws.Project()
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s) with %d categories in %s\n", p.Name, p.ID[:8], p.Categories.Len(), a.dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "codebook", "project name")
	cmd.Flags().StringVar(&codebookPath, "codebook", "", "codebook file with the category hierarchy")
	return cmd
}

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			return api.New(ws, addr).Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", a.cfg.Addr, "listen address")
	return cmd
}

// parseKey reads an interview key written as PARTICIPANT#INDEX
func parseKey(s string) (domain.InterviewKey, error) {
	at := strings.LastIndex(s, "#")
	if at <= 0 {
		return domain.InterviewKey{}, &domain.ValidationError{Field: "interview", Message: fmt.Sprintf("%q is not PARTICIPANT#INDEX", s)}
	}
	index, err := strconv.Atoi(s[at+1:])
	if err != nil || index < 1 {
		return domain.InterviewKey{}, &domain.ValidationError{Field: "interview", Message: fmt.Sprintf("bad index in %q", s)}
	}
	return domain.InterviewKey{Participant: s[:at], Index: index}, nil
}

// maxTokenPosition bounds positions on the command line; no transcript
// paragraph comes near it
const maxTokenPosition = 100_000

// parseTokens reads token positions such as "1-3,7,9-10"
func parseTokens(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, &domain.ValidationError{Field: "tokens", Message: fmt.Sprintf("bad position %q", part)}
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil || to < from {
				return nil, &domain.ValidationError{Field: "tokens", Message: fmt.Sprintf("bad range %q", part)}
			}
		}
		if to > maxTokenPosition || len(out)+to-from >= maxTokenPosition {
			return nil, &domain.ValidationError{Field: "tokens", Message: fmt.Sprintf("%q exceeds %d token positions", part, maxTokenPosition)}
		}
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return nil, &domain.ValidationError{Field: "tokens", Message: "no token positions given"}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
