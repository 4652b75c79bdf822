package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/bootstrap"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	syncUser     string
	publishPost  string
	publishPlats []string
)

var rootCmd = &cobra.Command{
	Use:          "postctl",
	Short:        "Operate the crosspost publishing pipeline",
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootstrap.OpenDB(*config.LoadConfig())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repository.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Publish scheduled posts that are due",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(deps *bootstrap.Deps) error {
			result, err := deps.Trigger.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), result)
		})
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh engagement metrics for one owner's published posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(deps *bootstrap.Deps) error {
			result, err := deps.Syncer.Sync(cmd.Context(), syncUser)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), result)
		})
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Republish a stored post with its saved content",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDeps(cmd.Context(), func(deps *bootstrap.Deps) error {
			post, err := deps.Posts.GetByID(cmd.Context(), publishPost)
			if err != nil {
				return err
			}
			if post == nil {
				return fmt.Errorf("post %q: %w", publishPost, repository.ErrPostNotFound)
			}

			platforms := make([]models.Platform, 0, len(publishPlats))
			for _, p := range publishPlats {
				platforms = append(platforms, models.Platform(p))
			}

			resp, err := deps.Coordinator.PublishPost(cmd.Context(), post, platforms)
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), resp)
		})
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncUser, "user", "", "Owner whose posts are synced")
	_ = syncCmd.MarkFlagRequired("user")

	publishCmd.Flags().StringVar(&publishPost, "post", "", "Post to republish")
	publishCmd.Flags().StringSliceVar(&publishPlats, "platform", nil, "Platforms to target (default: all on the post)")
	_ = publishCmd.MarkFlagRequired("post")

	rootCmd.AddCommand(migrateCmd, sweepCmd, syncCmd, publishCmd)
}

func withDeps(ctx context.Context, fn func(deps *bootstrap.Deps) error) error {
	cfg := config.LoadConfig()

	db, err := bootstrap.OpenDB(*cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := bootstrap.OpenRedis(ctx, *cfg)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	deps, err := bootstrap.Build(ctx, *cfg, db, rdb)
	if err != nil {
		return err
	}
	return fn(deps)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("Warning: Failed to load environment variables", err)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
