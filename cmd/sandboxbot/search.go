package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deusflow/sandboxbot/internal/app"
	"github.com/deusflow/sandboxbot/internal/config"
	"github.com/deusflow/sandboxbot/internal/news"
)

// searchCMD runs one search without Telegram and prints what the bot would send.
func searchCMD() *cobra.Command {
	var modeName, catalogPath string
	var search = &cobra.Command{
		Use:   "search [query...]",
		Short: "Run a single search and print the result messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := news.ParseMode(modeName)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			if query == "" && mode != news.ModeFresh {
				return fmt.Errorf("query is required in %s mode", mode)
			}

			cfg, err := config.Load()
			if err != nil && !errors.Is(err, config.ErrMissingToken) {
				return err
			}
			if catalogPath != "" {
				cfg.CatalogPath = catalogPath
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			comp, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer comp.Close()

			records, err := comp.Searcher.Search(ctx, query, mode)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("nothing found")
				return nil
			}
			for _, msg := range app.Render(records, query, mode, cfg.MessageLimit) {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	search.Flags().StringVarP(&modeName, "mode", "m", string(news.ModeQuick), "regional, international, fresh or quick")
	search.Flags().StringVar(&catalogPath, "catalog", "", "catalog file (default is the embedded catalog)")
	return search
}
