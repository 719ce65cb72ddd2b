// Command ingest-cli submits Dynamic Ingest requests from a terminal.
//
// Examples:
//
//	ingest-cli ingest --request new-video.json --wait
//	ingest-cli ingest -r replace-sources.json --report out/heron.json.gz
//	ingest-cli status --video-id 6311 --job-id 4c3b0e3a
//	ingest-cli config init
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/dynamic-ingest/internal/cli"
	"github.com/fpang/dynamic-ingest/internal/config"
	"github.com/fpang/dynamic-ingest/internal/ingesterr"
	"github.com/fpang/dynamic-ingest/internal/logging"
)

// Global flags
var (
	configFlag  string
	envFileFlag string
)

// cfg is loaded before every subcommand except config init.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ingest-cli",
	Short: "Create, replace and track Video Cloud ingests",
	Long: `ingest-cli runs Dynamic Ingest requests for one Video Cloud account.

A request document selects the variant: "video" creates a new video,
"video_id" targets an existing one, and "files" switches from pulling
URLs to pushing local files through temporary S3 upload locations.

Credentials come from the config file, BRIGHTCOVE_* environment variables
(optionally from a .env file), or an SSM parameter.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(envFileFlag); err != nil {
			return err
		}
		logging.Init()
		if cmd.Annotations["skipConfig"] == "true" {
			return nil
		}

		loaded, path, found, err := config.Load(configFlag)
		if err != nil {
			return err
		}
		cfg = loaded
		zerolog.SetGlobalLevel(logging.ParseLevel(cfg.Logging.Level))
		log.Debug().Str("path", path).Bool("found", found).Msg("Config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.config/dynamic-ingest/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", "Environment file to load before reading settings")
	rootCmd.AddCommand(newIngestCmd(), newStatusCmd(), newConfigCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitWith(err)
	}
}

// loadEnvFile loads path into the environment without overriding variables
// that are already set. A missing default file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == ".env" {
			return nil
		}
		return err
	}
	return nil
}

func exitWith(err error) {
	if ingesterr.KindOf(err) != ingesterr.KindUnknown {
		cli.Fatal(err)
	}
	log.Error().Err(err).Msg("Command failed")
	os.Exit(1)
}
