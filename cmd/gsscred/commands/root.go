// Package commands implements the CLI commands for gsscred.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marmos91/gsscred/internal/logger"
)

// Version information injected at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "gsscred",
	Short: "GSS-API credential inspection tool",
	Long: `gsscred acquires and inspects GSS-API credentials through the
pure-Go krb5 provider.

Initiator credentials resolve from a Kerberos credential cache (kinit),
acceptor credentials from a keytab.

Use "gsscred [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(logger.Config{
			Level:  viper.GetString("log-level"),
			Format: viper.GetString("log-format"),
		})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("ccache", "", "Credential cache path (default: $KRB5CCNAME)")
	rootCmd.PersistentFlags().String("keytab", "", "Keytab path (default: $KRB5_KTNAME)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text|json)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json)")

	// Every flag can also be set through GSSCRED_* environment
	// variables, e.g. GSSCRED_CCACHE.
	viper.SetEnvPrefix("GSSCRED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(versionCmd)
}
