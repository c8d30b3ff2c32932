package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/onboard-cli/internal/model"
	"github.com/sells-group/onboard-cli/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the consulta cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached consultas that have not expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		entries, err := c.List(cmd.Context())
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []model.CacheEntry{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached consulta",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		if err := c.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <cnpj>",
	Short: "Remove the cached consulta of one CNPJ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		if err := c.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", model.FormatCNPJ(args[0]))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}

func openCache(cmd *cobra.Command) (store.CacheStore, error) {
	if err := cfg.Validate("cache"); err != nil {
		return nil, err
	}
	return initCache(cmd.Context())
}
