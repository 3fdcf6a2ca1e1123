package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage cached results",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate [path]",
	Short: "Remove cached results for one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheInvalidate,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached results",
	RunE:  runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheInvalidate(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.InvalidateCache(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	cmd.Printf("Cache invalidated for %s\n", args[0])
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.ClearCache(cmd.Context()); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	cmd.Println("Cache cleared")
	return nil
}
