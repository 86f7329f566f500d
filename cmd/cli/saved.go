package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"moviedex/pkg/models"
)

func savedCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage favorite and watched movies",
	}

	var tab string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved movies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := fetchSaved(cmd.Context(), client(), tab)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	list.Flags().StringVar(&tab, "tab", "favorites", "favorites or watched")

	status := &cobra.Command{
		Use:   "status <tmdb-id>",
		Short: "Show favorite/watched status of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var st models.SavedStatus
			if err := client().authed(cmd.Context(), http.MethodGet, "/saved/"+id, nil, &st); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	add := &cobra.Command{
		Use:   "add <tmdb-id>",
		Short: "Favorite a movie using its catalog details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			c := client()
			var d models.MovieDetails
			if err := c.do(cmd.Context(), http.MethodGet, "/movies/"+id, "", nil, &d); err != nil {
				return err
			}
			payload := map[string]any{
				"tmdbMovieId": d.ID,
				"title":       d.Title,
				"posterPath":  orDefault(d.PosterPath, "/"),
				"releaseDate": orDefault(d.ReleaseDate, "unknown"),
				"voteAverage": d.VoteAverage,
			}
			var snap models.SavedMovieSnapshot
			if err := c.authed(cmd.Context(), http.MethodPost, "/saved", payload, &snap); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}

	watch := watchedCommand(client, "watch", true)
	unwatch := watchedCommand(client, "unwatch", false)

	remove := &cobra.Command{
		Use:   "remove <tmdb-id>",
		Short: "Unfavorite a movie (drops its watched state)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := client().authed(cmd.Context(), http.MethodDelete, "/saved/"+id, nil, nil); err != nil {
				return err
			}
			cmd.Println("removed", id)
			return nil
		},
	}

	var out, exportTab string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write saved movies to a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items, err := fetchSaved(cmd.Context(), client(), exportTab)
			if err != nil {
				return err
			}
			if err := exportCSV(out, items); err != nil {
				return err
			}
			cmd.Printf("exported %d movies to %s\n", len(items), out)
			return nil
		},
	}
	export.Flags().StringVar(&out, "out", "saved.csv", "output file")
	export.Flags().StringVar(&exportTab, "tab", "favorites", "favorites or watched")

	cmd.AddCommand(list, status, add, watch, unwatch, remove, export)
	return cmd
}

func watchedCommand(client func() *apiClient, use string, watched bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tmdb-id>",
		Short: "Set the watched flag of a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var snap models.SavedMovieSnapshot
			payload := map[string]bool{"isWatched": watched}
			if err := client().authed(cmd.Context(), http.MethodPatch, "/saved/"+id+"/watched", payload, &snap); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func fetchSaved(ctx context.Context, c *apiClient, tab string) ([]models.SavedMovieSnapshot, error) {
	var items []models.SavedMovieSnapshot
	if err := c.authed(ctx, http.MethodGet, "/saved?tab="+tab, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func exportCSV(path string, items []models.SavedMovieSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return writeSavedCSV(file, items)
}

func writeSavedCSV(w io.Writer, items []models.SavedMovieSnapshot) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"tmdb_movie_id", "title", "poster_path", "release_date", "vote_average", "is_watched", "saved_at",
	}); err != nil {
		return err
	}
	for _, m := range items {
		if err := writer.Write([]string{
			strconv.FormatInt(m.TMDBMovieID, 10),
			m.Title,
			m.PosterPath,
			m.ReleaseDate,
			strconv.FormatFloat(m.VoteAverage, 'f', -1, 64),
			strconv.FormatBool(m.IsWatched),
			m.SavedAt,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseID(raw string) (string, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("invalid movie id %q", raw)
	}
	return strconv.FormatInt(id, 10), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
