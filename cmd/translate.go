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
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/bubbletran/internal"
	"github.com/valpere/bubbletran/internal/ocr"
	"github.com/valpere/bubbletran/internal/orchestrator"
)

var (
	wordsFile      string
	outputFile     string
	conversationID string
	languageHint   string
)

type imageSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type translateOutput struct {
	RequestID    string               `json:"request_id"`
	OCRImageSize *imageSize           `json:"ocr_image_size,omitempty"`
	Groups       []internal.WordGroup `json:"groups"`
	Report       orchestrator.Report  `json:"report"`
}

var translateCmd = &cobra.Command{
	Use:   "translate [image]",
	Short: "Group and translate the bubbles of one page",
	Long: `Runs OCR on a page image (or reads OCR words from --words), groups the
words into bubbles and translates every bubble.

With --conversation, earlier translations of the same conversation are sent
to the provider as context and this page is added to the history.`,
	Example: `  bubbletran translate page01.png --conversation vol1
  bubbletran translate --words page01.words.json --provider echo`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if (len(args) == 0) == (wordsFile == "") {
			return fmt.Errorf("provide either an image or --words")
		}

		out := translateOutput{RequestID: uuid.New().String()}
		var words []internal.OCRWord

		if wordsFile != "" {
			w, err := readWords(wordsFile)
			if err != nil {
				return err
			}
			words = w
		} else {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			width, height, err := ocr.ImageSize(img)
			if err != nil {
				return err
			}
			out.OCRImageSize = &imageSize{W: width, H: height}

			engine, err := ocr.NewEngine(ctx, cfg.OCR, logger)
			if err != nil {
				return err
			}
			words, err = engine.Detect(ctx, img, languageHint)
			if err != nil {
				return fmt.Errorf("ocr failed: %w", err)
			}
		}

		analyzer, store, err := buildAnalyzer(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		start := time.Now()
		res, err := analyzer.Process(ctx, words, conversationID)
		if err != nil {
			return err
		}
		logger.Info("page translated",
			"request_id", out.RequestID, "words", len(words), "groups", len(res.Groups),
			"provider", res.Report.Provider, "duration", time.Since(start))

		out.Groups = res.Groups
		out.Report = res.Report
		return writeJSON(outputFile, out)
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&wordsFile, "words", "w", "", "OCR words JSON file instead of an image")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	translateCmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation id for translation context")
	translateCmd.Flags().StringVar(&languageHint, "language-hint", ocr.DefaultLanguageHint, "OCR language hint")
}
