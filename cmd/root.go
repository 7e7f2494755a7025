package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cropocr/internal/config"
	"github.com/lehigh-university-libraries/cropocr/internal/utils"
)

// cfg is loaded once per invocation before any subcommand runs.
var cfg config.Config

var RootCmd = &cobra.Command{
	Use:   "cropocr",
	Short: "Crop images and recognize, overlay and translate the text inside",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ll, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}

		opts := &slog.HandlerOptions{
			Level: parseLogLevel(ll),
		}
		handler := slog.New(slog.NewTextHandler(os.Stdout, opts))
		slog.SetDefault(handler)

		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		slog.Debug("Configuration loaded",
			"ocr_url", utils.MaskURL(cfg.OCRURL),
			"translate_url", utils.MaskURL(cfg.TranslateURL),
			"camera_url", utils.MaskURL(cfg.CameraURL),
			"timeout", cfg.Timeout)
		return nil
	},
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func init() {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	RootCmd.PersistentFlags().String("log-level", ll, "The logging level for the command")
	RootCmd.PersistentFlags().String("config", os.Getenv("CROPOCR_CONFIG"), "Path to a YAML config file")
}
