package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/state"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "Inspect saved conversations",
	Long: `Inspect conversations journaled to context.persist_path.

Conversations only appear here when serve or ask ran with persistence
enabled.`,
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSavedState()
		if err != nil {
			return err
		}
		defer db.Close()
		return listConversations(cmd.Context(), cmd.OutOrStdout(), db)
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print every turn of a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSavedState()
		if err != nil {
			return err
		}
		defer db.Close()
		return showConversation(cmd.Context(), cmd.OutOrStdout(), db, args[0])
	},
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openSavedState()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.DeleteConversation(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
}

var errNoPersistence = errors.New("context.persist_path is not set")

func openSavedState() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path := cfg.Context.PersistPath
	if path == "" {
		return nil, errNoPersistence
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no saved state at %s: %w", path, err)
	}
	return state.OpenAndMigrate(path)
}

func listConversations(ctx context.Context, w io.Writer, db *state.DB) error {
	convs, err := db.ListConversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(w, "No saved conversations.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTURNS\tCREATED\tUPDATED")
	for _, c := range convs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.ID, c.Turns,
			c.CreatedAt.Local().Format(time.DateTime), c.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func showConversation(ctx context.Context, w io.Writer, db *state.DB, id string) error {
	turns, err := db.LoadTurns(ctx, id)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("conversation %q not found", id)
	}
	for _, t := range turns {
		who := string(t.Role)
		if t.CapabilityID != "" {
			who += " (" + t.CapabilityID + ")"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", t.Timestamp.Local().Format(time.TimeOnly), who, t.Text)
	}
	return nil
}
