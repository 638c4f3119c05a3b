package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pbaille/codebook/internal/domain"
	"github.com/pbaille/codebook/internal/fetcher"
	"github.com/pbaille/codebook/internal/workspace"
)

func (a *app) interviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interview",
		Aliases: []string{"interviews"},
		Short:   "Manage interview transcripts",
	}
	cmd.AddCommand(a.interviewAddCmd())
	cmd.AddCommand(a.interviewListCmd())
	cmd.AddCommand(a.interviewShowCmd())
	cmd.AddCommand(a.interviewRmCmd())
	return cmd
}

// readTranscript loads text from a URL, an HTML or plain text file, or stdin
// for "-", decoding it to UTF-8
func readTranscript(source string, stdin io.Reader) (string, error) {
	if fetcher.IsURL(source) {
		return fetcher.Fetch(source)
	}

	var r io.Reader = stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return "", fmt.Errorf("open transcript: %w", err)
		}
		defer f.Close()
		r = f
	}

	lower := strings.ToLower(source)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		return fetcher.FromHTML(r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	return fetcher.DecodeText(data, "")
}

func (a *app) interviewAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [participant] [file|url|-]",
		Short: "Add a transcript; blank lines separate paragraphs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTranscript(args[1], cmd.InOrStdin())
			if err != nil {
				return err
			}

			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			key, err := ws.AddInterview(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			iv, _ := ws.Project().Interview(key)
			fmt.Fprintf(cmd.OutOrStdout(), "Added interview %s: %d paragraphs, %d tokens\n", key, len(iv.Paragraphs), iv.TokenCount())
			return nil
		},
	}
}

func (a *app) interviewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List interviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			out := cmd.OutOrStdout()
			var ivs []*domain.Interview
			ws.View(func(p *domain.Project) { ivs = p.SortedInterviews() })
			if len(ivs) == 0 {
				fmt.Fprintln(out, "No interviews yet. Use 'codebook interview add' to create one.")
				return nil
			}

			for _, iv := range ivs {
				first := ""
				if len(iv.Paragraphs) > 0 {
					first = iv.Paragraphs[0].Text()
				}
				fmt.Fprintf(out, "%-10s %3d ¶ %5d tokens  %s\n", iv.Key(), len(iv.Paragraphs), iv.TokenCount(), truncate(first, 50))
			}
			return nil
		},
	}
}

func (a *app) interviewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [participant#index]",
		Short: "Show an interview with token positions and categories",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			var showErr error
			ws.View(func(p *domain.Project) {
				iv, err := p.Interview(key)
				if err != nil {
					showErr = err
					return
				}
				showErr = printInterview(cmd.OutOrStdout(), p.Categories, iv)
			})
			return showErr
		},
	}
}

// printInterview lists every token with its position, category and run
// boundaries: "(" opens a run, ")" closes it
func printInterview(w io.Writer, h *domain.Hierarchy, iv *domain.Interview) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Interview %s (%s)\n", iv.Key(), iv.ID)
	for n, par := range iv.Paragraphs {
		fmt.Fprintf(tw, "\nparagraph %d\n", n)
		for pos, id := range par.Order() {
			tok := par.Token(id)
			code, bounds := "", ""
			if tok.Category != domain.None {
				code = h.Code(tok.Category)
				if tok.First {
					bounds += "("
				}
				if tok.Last {
					bounds += ")"
				}
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", pos, tok.Text, code, bounds)
		}
	}
	return tw.Flush()
}

func (a *app) interviewRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm [participant#index]",
		Short: "Delete an interview; later interviews of the participant are renumbered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			if err := ws.DeleteInterview(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted interview %s\n", key)
			return nil
		},
	}
}

// selectionFlags are shared by assign and clear
type selectionFlags struct {
	interview string
	paragraph int
	tokens    string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.interview, "interview", "i", "", "interview as PARTICIPANT#INDEX")
	cmd.Flags().IntVarP(&f.paragraph, "paragraph", "p", 0, "paragraph number")
	cmd.Flags().StringVarP(&f.tokens, "tokens", "t", "", "token positions, e.g. 1-3,7")
	cmd.MarkFlagRequired("interview")
	cmd.MarkFlagRequired("tokens")
}

func (f *selectionFlags) selection() (workspace.Selection, error) {
	key, err := parseKey(f.interview)
	if err != nil {
		return workspace.Selection{}, err
	}
	tokens, err := parseTokens(f.tokens)
	if err != nil {
		return workspace.Selection{}, err
	}
	return workspace.Selection{Interview: key, Paragraph: f.paragraph, Tokens: tokens}, nil
}

func (a *app) assignCmd() *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "assign [category]",
		Short: "Tag tokens of a paragraph with a leaf category",
		Long: `Tag tokens of a paragraph with a leaf category. Gaps in --tokens make an
interrupted selection; it is rejected when it would strand part of another
run between the selected parts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sel.selection()
			if err != nil {
				return err
			}
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			if err := ws.Assign(cmd.Context(), s, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tagged %d tokens of %s paragraph %d with %s\n", len(s.Tokens), s.Interview, s.Paragraph, args[0])
			return nil
		},
	}

	sel.register(cmd)
	return cmd
}

func (a *app) clearCmd() *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove categories from tokens of a paragraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sel.selection()
			if err != nil {
				return err
			}
			ws, closeAll, err := a.openWorkspace()
			if err != nil {
				return err
			}
			defer closeAll()

			if err := ws.Clear(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d tokens of %s paragraph %d\n", len(s.Tokens), s.Interview, s.Paragraph)
			return nil
		},
	}

	sel.register(cmd)
	return cmd
}
