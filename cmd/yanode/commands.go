package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/history"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/scope"
)

var (
	reindexForce bool
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the best matching file for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [folder-id...]",
	Short: "Build the index for a folder selection (none = whole drive)",
	RunE:  runReindex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE:  runStatus,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the record as JSON")
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "Rebuild even when the index is fresh")
	rootCmd.AddCommand(searchCmd, reindexCmd, statusCmd)
}

func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	return withApp(cmd, func(a *app) error {
		ctx := cmd.Context()
		res, err := a.engine.Search(ctx, query)
		if err != nil {
			return err
		}
		if res.Record.Found() {
			err := a.history.Add(ctx, history.Entry{
				Query:  query,
				FileID: res.FileID,
				Name:   res.Record.Name,
				Path:   res.Record.Path,
				URL:    res.Record.URL,
				Stage:  string(res.Stage),
			})
			if err != nil {
				logging.Warn("record history failed", zap.Error(err))
			}
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(a.formatter.Clipped(res.Record))
		}
		fmt.Fprintln(out, a.formatter.Render(res.Record))
		return nil
	})
}

func runReindex(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		outcome, err := a.index.Ensure(cmd.Context(), args, reindexForce)
		if errors.Is(err, scope.ErrEmptySelection) {
			fmt.Fprintln(cmd.OutOrStdout(), "skipped:", err)
			return nil
		}
		if err != nil {
			return err
		}
		st := a.index.Stats()
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, roots %s\n", outcome, st.Items, st.Roots)
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		if _, err := a.index.Refresh(cmd.Context()); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(a.index.Stats())
	})
}
