package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nik-maltcev/datatrace/internal/model"
)

var (
	searchType    string
	searchSources []string
)

var searchCmd = &cobra.Command{
	Use:   "search <value>",
	Short: "Run one aggregated search across all configured sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := model.ParseSearchType(searchType)
		if err != nil {
			return err
		}
		q, err := model.NewQuery(st, args[0])
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if cfg.Search.DeadlineSecs > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Search.DeadlineSecs)*time.Second)
			defer cancel()
		}

		result, err := eng.aggregator.SearchAll(ctx, q, searchSources)
		if err != nil {
			zap.L().Warn("search failed, running recovery", zap.Error(err))
			result, err = eng.recovery.Run(ctx, q, searchSources, err)
			if err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchType, "type", "t", "phone", "search type: phone, email, inn, snils, passport")
	searchCmd.Flags().StringSliceVar(&searchSources, "sources", nil, "restrict to specific source ids")
	rootCmd.AddCommand(searchCmd)
}
