package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pbaille/codebook/internal/codebook"
	"github.com/pbaille/codebook/internal/domain"
)

func readCodebook(path string) (*domain.Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer f.Close()
	return codebook.Parse(path, f)
}

func (a *app) categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Show or replace the category hierarchy",
	}
	cmd.AddCommand(a.categoriesListCmd())
	cmd.AddCommand(a.categoriesImportCmd())
	return cmd
}

func (a *app) categoriesListCmd() *cobra.Command {
	var asCodebook bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List categories as a tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			out := cmd.OutOrStdout()
			h := ws.Project().Categories
			if h.Len() == 0 {
				fmt.Fprintln(out, "No categories yet. Use 'codebook categories import' to load a codebook.")
				return nil
			}
			if asCodebook {
				return codebook.Write(out, h)
			}

			var printTree func(id domain.CategoryID, depth int)
			printTree = func(id domain.CategoryID, depth int) {
				c, _ := h.Get(id)
				marker := ""
				if h.IsSelectable(id) {
					marker = " *"
				}
				fmt.Fprintf(out, "%s%s  %s%s\n", strings.Repeat("  ", depth), c.Code, c.Name, marker)
				for _, child := range h.Children(id) {
					printTree(child, depth+1)
				}
			}
			for _, root := range h.Roots() {
				printTree(root, 0)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCodebook, "codebook", false, "print in codebook file syntax")
	return cmd
}

func (a *app) categoriesImportCmd() *cobra.Command {
	var mappings []string
	var keep bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the hierarchy with a codebook file",
		Long: `Replace the category hierarchy. Tokens tagged with an old category are
translated through --map OLD=NEW; with --keep, old codes that name a leaf of
the new codebook map to themselves. Tokens of unmapped categories are cleared.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := readCodebook(args[0])
			if err != nil {
				return err
			}

			mapping := make(map[string]string)
			for _, m := range mappings {
				from, to, ok := strings.Cut(m, "=")
				if !ok || from == "" || to == "" {
					return fmt.Errorf("bad mapping %q, want OLD=NEW", m)
				}
				mapping[from] = to
			}

			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			if err := ws.ReplaceCategories(cmd.Context(), next, mapping, keep); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories\n", next.Len())
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&mappings, "map", nil, "translate an old code to a new one (OLD=NEW)")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep tokens whose code is a leaf of the new codebook")
	return cmd
}
