package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vadimtrunov/MovieSearch/internal/metadata/tmdb"
)

// movieGetter is the part of the TMDb client the movie command needs.
type movieGetter interface {
	GetMovie(ctx context.Context, id int) (*tmdb.MovieDetails, error)
}

func newMovieCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "movie [tmdb-id]",
		Short:   "Show details of a movie by TMDb ID",
		Example: `  moviesearch movie 438631`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid TMDb ID %q", args[0])
			}

			cfg, err := loadValidConfig(configPath)
			if err != nil {
				return err
			}
			logger := setupCLILogger(cfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runMovie(ctx, cmd.OutOrStdout(), newTMDbClient(cfg, logger), id)
		},
	}
}

func runMovie(ctx context.Context, out io.Writer, client movieGetter, id int) error {
	details, err := client.GetMovie(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderDetails(details))
	return nil
}

// renderDetails formats full movie details for the terminal.
func renderDetails(d *tmdb.MovieDetails) string {
	var sb strings.Builder
	sb.WriteString(styleHeader.Render(d.Title))
	sb.WriteString("\n")
	if d.Tagline != "" {
		sb.WriteString(styleDim.Render(d.Tagline) + "\n")
	}

	row := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&sb, "%s %s\n", styleInfo.Render(fmt.Sprintf("%-13s", label)), value)
	}
	row("Release date", d.ReleaseDate)
	if d.Runtime > 0 {
		row("Runtime", fmt.Sprintf("%d min", d.Runtime))
	}
	row("Rating", styleRating.Render(fmt.Sprintf("★ %.1f", d.VoteAverage))+fmt.Sprintf(" (%d votes)", d.VoteCount))
	if len(d.Genres) > 0 {
		names := make([]string, len(d.Genres))
		for i, g := range d.Genres {
			names[i] = g.Name
		}
		row("Genres", strings.Join(names, ", "))
	}
	row("Status", d.Status)
	if d.IMDbID != "" {
		row("IMDb", "https://www.imdb.com/title/"+d.IMDbID)
	}
	row("Homepage", d.Homepage)
	row("Poster", tmdb.PosterURL(d.PosterPath, "original"))

	if d.Overview != "" {
		sb.WriteString("\n")
		sb.WriteString(wrapText(d.Overview, 80))
		sb.WriteString("\n")
	}
	return sb.String()
}
