package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/store"
	"github.com/pbaille/codebook/internal/validate"
	"github.com/pbaille/codebook/internal/workspace"
	"github.com/pbaille/codebook/internal/xmlfile"
)

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.xml|file.xml.xz]",
		Short: "Write the project to an XML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			ws.View(func(p *domain.Project) { err = xmlfile.Save(args[0], p) })
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
			return nil
		},
	}
}

func (a *app) importCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import [file.xml|file.xml.xz]",
		Short: "Load a project from an XML file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := xmlfile.Load(args[0])
			if err != nil {
				return err
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

			if _, err := workspace.Import(cmd.Context(), s, l, p, force); err != nil {
				if errors.Is(err, domain.ErrInvalidInput) && !force {
					return fmt.Errorf("%w (use --force to replace it)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d categories, %d interviews\n", p.Name, p.Categories.Len(), len(p.Interviews))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace the project already in the database")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the project survives a save and reload in every format",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			dir, err := os.MkdirTemp("", "codebook-verify-")
			if err != nil {
				return fmt.Errorf("create temp dir: %w", err)
			}
			defer os.RemoveAll(dir)

			out := cmd.OutOrStdout()
			var failed bool
			ws.View(func(p *domain.Project) {
				fmt.Fprintf(out, "fingerprint %s\n", validate.Fingerprint(p))
				for _, check := range []struct {
					name string
					load func() (*domain.Project, error)
				}{
					{"sqlite", func() (*domain.Project, error) { return sqliteRoundTrip(filepath.Join(dir, "verify.db"), p) }},
					{"xml", func() (*domain.Project, error) { return xmlRoundTrip(filepath.Join(dir, "verify.xml"), p) }},
					{"xml.xz", func() (*domain.Project, error) { return xmlRoundTrip(filepath.Join(dir, "verify.xml.xz"), p) }},
				} {
					got, err := check.load()
					if err != nil {
						fmt.Fprintf(out, "%-7s error: %v\n", check.name, err)
						failed = true
						continue
					}
					if d := validate.Diff(p, got); d != "" {
						fmt.Fprintf(out, "%-7s MISMATCH: %s\n", check.name, d)
						failed = true
						continue
					}
					fmt.Fprintf(out, "%-7s ok\n", check.name)
				}
			})
			if failed {
				return fmt.Errorf("round trip verification failed")
			}
			return nil
		},
	}
}

func sqliteRoundTrip(path string, p *domain.Project) (*domain.Project, error) {
	s, err := store.New(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	if err := s.Save(p); err != nil {
		return nil, err
	}
	return s.Load()
}

func xmlRoundTrip(path string, p *domain.Project) (*domain.Project, error) {
	if err := xmlfile.Save(path, p); err != nil {
		return nil, err
	}
	return xmlfile.Load(path)
}
