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
	"github.com/spf13/cobra"

	"github.com/valpere/bubbletran/internal/grouping"
	"github.com/valpere/bubbletran/internal/sequence"
)

var groupOrdered bool

var groupCmd = &cobra.Command{
	Use:   "group <words.json>",
	Short: "Group OCR words into bubbles without translating",
	Long: `Reads OCR words (a JSON array, or an object with a "words" field) and
prints the bubble groups with their assembled source text.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		words, err := readWords(args[0])
		if err != nil {
			return err
		}

		groups := grouping.GroupWords(words)
		sequence.Assemble(groups, words)
		if groupOrdered {
			groups = sequence.OrderGroups(groups)
		}

		logger.Debug("words grouped", "words", len(words), "groups", len(groups))
		return writeJSON(outputFile, groups)
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)

	groupCmd.Flags().BoolVar(&groupOrdered, "reading-order", false, "Print groups in reading order instead of id order")
	groupCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
}
