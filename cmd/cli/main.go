package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"moviedex/pkg/models"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		baseURL   string
		tokenPath string
	)
	client := func() *apiClient { return newAPIClient(baseURL, tokenPath) }

	root := &cobra.Command{
		Use:           "moviedex",
		Short:         "Command line client for the moviedex API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "api", envOr("MOVIEDEX_API", defaultBaseURL), "API base URL")
	root.PersistentFlags().StringVar(&tokenPath, "token", defaultTokenPath(), "token file path")

	root.AddCommand(
		registerCommand(client),
		loginCommand(client),
		logoutCommand(client),
		searchCommand(client),
		trendingCommand(client),
		discoverCommand(client),
		savedCommand(client),
		eventsCommand(client),
	)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

func registerCommand(client func() *apiClient) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store its token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var resp authResponse
			payload := map[string]string{"name": name, "email": email, "password": password}
			if err := c.do(cmd.Context(), http.MethodPost, "/auth/register", "", payload, &resp); err != nil {
				return err
			}
			if err := c.saveToken(resp.Token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			cmd.Printf("registered %s <%s>\n", resp.User.Name, resp.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func loginCommand(client func() *apiClient) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			var resp authResponse
			payload := map[string]string{"email": email, "password": password}
			if err := c.do(cmd.Context(), http.MethodPost, "/auth/login", "", payload, &resp); err != nil {
				return err
			}
			if err := c.saveToken(resp.Token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			cmd.Println("logged in")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := client()
			if err := c.authed(cmd.Context(), http.MethodPost, "/auth/logout", nil, nil); err != nil {
				return err
			}
			if err := c.clearToken(); err != nil {
				return err
			}
			cmd.Println("logged out")
			return nil
		},
	}
}

func searchCommand(client func() *apiClient) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the movie catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"q": {args[0]}, "page": {strconv.Itoa(page)}}
			var resp models.CatalogPage
			if err := client().do(cmd.Context(), http.MethodGet, "/movies/search?"+q.Encode(), "", nil, &resp); err != nil {
				return err
			}
			printMovies(cmd.OutOrStdout(), resp.Results)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	return cmd
}

func discoverCommand(client func() *apiClient) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List popular movies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp models.CatalogPage
			path := "/movies/discover?page=" + strconv.Itoa(page)
			if err := client().do(cmd.Context(), http.MethodGet, path, "", nil, &resp); err != nil {
				return err
			}
			printMovies(cmd.OutOrStdout(), resp.Results)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page")
	return cmd
}

func trendingCommand(client func() *apiClient) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Show the most searched terms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var items []models.TrendingMovie
			path := "/movies/trending?limit=" + strconv.Itoa(limit)
			if err := client().do(cmd.Context(), http.MethodGet, path, "", nil, &items); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TERM\tCOUNT\tMOVIE\tTITLE")
			for _, t := range items {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", t.SearchTerm, t.Count, t.MovieID, t.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of terms")
	return cmd
}

func printMovies(out io.Writer, movies []models.CatalogMovie) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRELEASED\tRATING")
	for _, m := range movies {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\n", m.ID, m.Title, m.ReleaseDate, m.VoteAverage)
	}
	_ = w.Flush()
}

func printJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
