package commands

import (
	"github.com/spf13/cobra"

	"github.com/gaborage/go-livy/logger"
)

// configFilter masks secrets but keeps credential URLs and usernames readable.
func configFilter() *logger.SensitiveDataFilter {
	return logger.NewSensitiveDataFilter(&logger.FilterConfig{
		SensitiveFields: []string{"password", "secret", "token", "authorization", "api_key", "apikey", "cookie"},
	})
}

func newConfigCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), configFilter().FilterFields(e.cfg.All()))
		},
	})
	return cmd
}
