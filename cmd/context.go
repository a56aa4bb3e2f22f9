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
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

var showLimit int

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage stored conversation context",
	Long:  `List, inspect, and clear the translation history kept per conversation.`,
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations with stored context",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openContextStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		convs, err := store.Conversations(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}

		if len(convs) == 0 {
			fmt.Println("No stored conversations.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CONVERSATION\tENTRIES\tLAST UPDATED")
		for _, c := range convs {
			last := "-"
			if !c.LastUpdated.IsZero() {
				last = c.LastUpdated.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%d\t%s\n", c.ConversationID, c.Entries, last)
		}
		return w.Flush()
	},
}

var contextShowCmd = &cobra.Command{
	Use:   "show <conversation>",
	Short: "Show the most recent entries of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openContextStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.GetRecent(cmd.Context(), args[0], showLimit)
		if err != nil {
			return fmt.Errorf("failed to read conversation: %w", err)
		}
		if len(entries) == 0 {
			fmt.Printf("No entries for %s.\n", args[0])
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tTARGET")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\n", snippet(e.Source, 40), snippet(e.Target, 60))
		}
		return w.Flush()
	},
}

var contextClearCmd = &cobra.Command{
	Use:   "clear <conversation>",
	Short: "Remove all stored context of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openContextStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.Clear(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to clear conversation: %w", err)
		}
		fmt.Printf("Cleared %d entries from %s.\n", n, args[0])
		return nil
	},
}

func snippet(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func init() {
	rootCmd.AddCommand(contextCmd)

	contextShowCmd.Flags().IntVarP(&showLimit, "limit", "n", 0, "Number of entries (default context.max_return)")

	contextCmd.AddCommand(contextListCmd)
	contextCmd.AddCommand(contextShowCmd)
	contextCmd.AddCommand(contextClearCmd)
}
