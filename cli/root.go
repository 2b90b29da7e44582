// Package cli holds the media-converter commands.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/akila/media-converter/config"
	"github.com/akila/media-converter/converters/rasterize"
	"github.com/akila/media-converter/converters/tesseract"
	"github.com/akila/media-converter/dispatch"
	"github.com/akila/media-converter/logging"
	"github.com/akila/media-converter/routes"
	"github.com/akila/media-converter/workspace"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "media-converter",
	Short: "Convert images, audio/video and PDFs with local engines",
	Long: `media-converter routes a conversion request to ImageMagick, FFmpeg,
LibreOffice or Tesseract OCR based on the source and target formats.
Run it as an HTTP service with "serve" or convert a single file with "convert".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd, convertCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// app is everything a command needs to run conversions.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	ws         *workspace.Manager
	table      *routes.Table
	dispatcher *dispatch.Dispatcher
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	ws, err := workspace.New(cfg.WorkDir, log)
	if err != nil {
		return nil, fmt.Errorf("prepare work dir: %w", err)
	}
	engines := dispatch.NewEngineManager(cfg, tesseract.New(cfg.OCRLanguages...), rasterize.New(), log)
	log.Debug().
		Str("imagemagick", cfg.ImageMagickBin).
		Str("ffmpeg", cfg.FFmpegBin).
		Str("soffice", cfg.SofficeBin).
		Str("ocr_languages", cfg.OCRLanguageSpec()).
		Int("ocr_dpi", cfg.OCRDPI).
		Msg("engines configured")
	table := routes.Default()
	return &app{
		cfg:        cfg,
		log:        log,
		ws:         ws,
		table:      table,
		dispatcher: dispatch.NewDispatcher(table, engines, log),
	}, nil
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return cfg, logging.New(cfg.AppEnv, level), nil
}
