package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/MovieSearch/internal/search"
)

func newSearchCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "search [title]",
		Short: "Print one page of search results",
		Long:  "Search TMDb by title and print a single page of results without entering interactive mode.",
		Example: `  moviesearch search dune
  moviesearch search "the matrix" --page 2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig(configPath)
			if err != nil {
				return err
			}
			logger := setupCLILogger(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			notifier := search.NotifierFunc(func(string) {
				fmt.Fprintln(out, styleDim.Render(search.EmptyResultMessage))
			})
			session := search.NewSession(newTMDbClient(cfg, logger), sessionOptions(cfg, notifier, logger))
			return runSearch(ctx, out, session, strings.Join(args, " "), page)
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "results page to print")
	return cmd
}

// runSearch drives session to the requested page and prints it. Pages
// past the first are reached through the first one so the page count is
// known and out-of-range requests are rejected.
func runSearch(ctx context.Context, out io.Writer, session *search.Session, title string, page int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("search title must not be empty")
	}
	if page < 1 {
		return fmt.Errorf("--page must be at least 1")
	}

	settle(ctx, session, session.SubmitQuery(title))
	if err := viewError(session.View()); err != nil {
		return err
	}

	if page > 1 {
		req := session.ChangePage(page)
		if req == nil {
			total := session.Pagination().Total
			return fmt.Errorf("page %d is out of range: %q has %d page(s)", page, session.Query(), total)
		}
		settle(ctx, session, req)
		if err := viewError(session.View()); err != nil {
			return err
		}
	}

	printResults(out, session.View())
	return nil
}

// settle runs req, if any, and commits its result.
func settle(ctx context.Context, session *search.Session, req *search.Request) {
	if req == nil {
		return
	}
	session.Resolve(req.Run(ctx))
}

func viewError(v search.View) error {
	if !v.ShowError {
		return nil
	}
	return fmt.Errorf("%s: %w", search.UserMessage(v.ErrKind), v.Err)
}

// printResults writes a numbered list of the displayed page.
func printResults(out io.Writer, v search.View) {
	if !v.ShowGrid {
		return
	}
	fmt.Fprintln(out, styleHeader.Render(fmt.Sprintf("Results for %q", v.Query)))
	for i, m := range v.Items {
		fmt.Fprintf(out, "%3d. %s  %s  %s\n",
			i+1,
			styleTitle.Render(titleWithYear(m)),
			styleRating.Render(fmt.Sprintf("★ %.1f", m.VoteAverage)),
			styleDim.Render(fmt.Sprintf("tmdb:%d", m.ID)),
		)
	}
	if v.Pagination != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styleDim.Render(fmt.Sprintf("Page %d of %d · %d movies · use --page to see more",
			v.Pagination.Current, v.Pagination.Total, v.TotalResults)))
	}
}
