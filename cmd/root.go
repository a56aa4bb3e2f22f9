/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/valpere/bubbletran/internal/config"
	"github.com/valpere/bubbletran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile      string
	providerName string
	logLevel     string
	logFormat    string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "bubbletran",
	Short: "Speech bubble grouping and translation for manga pages",
	Long: `Groups OCR word detections on a comic page into speech bubbles, puts them
in reading order and translates each bubble with an LLM provider.

Providers: cerebras (default), gemini, echo (no translation).

Settings come from defaults, an optional --config file, .env and
BUBBLETRAN_* environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("provider") {
			loaded.Provider = providerName
		}
		if flags.Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if flags.Changed("log-format") {
			loaded.Log.Format = logFormat
		}

		out, closer := logging.Output(os.Stderr, loaded.Log.File, loaded.Log.MaxSizeMB, loaded.Log.MaxBackups)
		l, err := logging.New(loaded.Log.Level, loaded.Log.Format, out)
		if err != nil {
			closer.Close()
			return err
		}
		logCloser = closer
		slog.SetDefault(l)

		cfg = loaded
		logger = l
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	pf.StringVar(&providerName, "provider", "", "Translation provider: cerebras, gemini or echo")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

// Execute runs the command tree until ctx is canceled or an interrupt
// arrives.
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	)
}
