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
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/bubbletran/internal/logging"
	"github.com/valpere/bubbletran/internal/ocr"
	"github.com/valpere/bubbletran/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API:

  POST /analyze   image_url or image_b64 -> OCR, grouping, translation
  POST /words     OCR words -> grouping, translation
  GET  /health    liveness`,
	Example: `  bubbletran serve
  bubbletran serve --addr :9000 --provider gemini`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		analyzer, store, err := buildAnalyzer(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		engine, err := ocr.NewEngine(ctx, cfg.OCR, logger)
		if err != nil {
			return err
		}

		accessOut, accessCloser := logging.Output(os.Stdout, cfg.Log.AccessFile, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		defer accessCloser.Close()
		accessLog, err := logging.New(cfg.Log.Level, cfg.Log.Format, accessOut)
		if err != nil {
			return err
		}

		opts := server.Options{FetchTimeout: cfg.Server.FetchTimeout, AccessLog: accessLog}
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.New(analyzer, engine, opts, logger).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErr := make(chan error, 1)
		go func() {
			logger.Info("api listening", "addr", cfg.Server.Addr, "provider", cfg.Provider, "ocr", engine.Name())
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown failed", "err", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		case err := <-serverErr:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
}
