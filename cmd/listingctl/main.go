package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/classifier"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/repository"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/service"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/storage"
)

const operatorID = "listingctl"

func main() {
	// The CLI never verifies bearer tokens.
	if os.Getenv("AUTH_MODE") == "" {
		os.Setenv("AUTH_MODE", "dev")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "listingctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listingctl",
		Short: "Listing moderation operator CLI",
		Long: `listingctl manages the listing database schema, inspects the image catalog,
screens photos against the classifier and applies moderator decisions.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newMigrateCmd(),
		newCatalogCmd(),
		newClassifyCmd(),
		newModerateCmd("approve", "Approve a listing so it becomes public"),
		newModerateCmd("reject", "Reject a listing and hide it from the public"),
	)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the listing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.EnsureSchema(cmd.Context(), classifier.DefaultCatalog().Len()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newCatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the classifier prompts with their class",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := classifier.DefaultCatalog()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tCLASS\tPROMPT")
			for i := 0; i < catalog.Len(); i++ {
				c := catalog.At(i)
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, c.Class, c.Prompt)
			}
			return w.Flush()
		},
	}
}

type classifyOutput struct {
	Verdict model.SubmissionVerdict `json:"verdict"`
	Images  []classifyImage         `json:"images"`
}

type classifyImage struct {
	Filename string             `json:"filename"`
	Verdict  model.ImageVerdict `json:"verdict"`
	Scores   []float64          `json:"scores,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func newClassifyCmd() *cobra.Command {
	var withScores bool
	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Screen image files against the configured classifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logging.NewLogger()

			images := make([]classifier.Image, len(args))
			for i, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				images[i] = classifier.Image{Filename: filepath.Base(path), Data: data}
			}

			gate := classifier.NewGate(
				classifier.DefaultCatalog(),
				classifier.NewClipClient(&cfg.Classifier, logger),
				cfg.Classifier.Concurrency,
				logger,
			)
			eval := gate.EvaluateSubmission(cmd.Context(), images)

			out := classifyOutput{Verdict: eval.Verdict, Images: make([]classifyImage, len(eval.Images))}
			for i, res := range eval.Images {
				img := classifyImage{Filename: res.Filename, Verdict: res.Verdict}
				if withScores {
					img.Scores = res.Score
				}
				if res.Err != nil {
					img.Error = res.Err.Error()
				}
				out.Images[i] = img
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withScores, "scores", false, "Include the full per-category score vector")
	return cmd
}

func newModerateCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid listing id %q", args[0])
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cfg.Logging.NewLogger()
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			// Moderator actions never touch image bytes; URLs are not needed.
			svc := service.NewListingService(repo, storage.NewMemoryStore(""), nil, cfg.Upload, logger)
			operator := model.Moderator(operatorID)

			var listing *model.Listing
			if action == "approve" {
				listing, err = svc.Approve(cmd.Context(), operator, id)
			} else {
				listing, err = svc.Reject(cmd.Context(), operator, id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listing %d is now %s\n", listing.ID, listing.ModerationState)
			return nil
		},
	}
}

func openRepository(cfg *config.Config) (*repository.PostgresRepository, error) {
	return repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
}
