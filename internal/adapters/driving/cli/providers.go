package cli

import (
	"errors"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers",
	Long:  `List registered document providers with their health, formats, and operations.`,
	RunE:  runProvidersList,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProvidersList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	infos := documentService.ListProviders(cmd.Context())
	if len(infos) == 0 {
		cmd.Println("No providers registered.")
		return nil
	}

	for _, info := range infos {
		cmd.Printf("%s [%s]\n", info.Name, info.Health)

		formats := make([]string, len(info.Descriptor.Formats))
		for i, f := range info.Descriptor.Formats {
			formats[i] = string(f)
		}
		if info.Descriptor.Wildcard {
			formats = append(formats, "*")
		}
		cmd.Printf("  Formats: %s\n", strings.Join(formats, ", "))

		ops := make([]string, 0, len(info.Descriptor.Operations))
		for op := range info.Descriptor.Operations {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		cmd.Printf("  Operations: %s\n", strings.Join(ops, ", "))
		cmd.Printf("  Performance: %s\n", info.Descriptor.Perf)
		cmd.Println()
	}
	return nil
}
