package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).ExecuteContext(context.Background())
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Sign in to the math course admin portal",
		Long: `portalctl signs an administrator in to the math course portal and keeps the
session in a local cache file so later commands reuse it until it expires (24h)
or is revoked.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./portalctl.yaml or ~/.mathcourse/portalctl.yaml)")
	cmd.PersistentFlags().String("base-url", "", "portal service URL (env PORTAL_BASE_URL)")
	cmd.PersistentFlags().String("cache-file", "", "session cache file (default ~/.mathcourse/session.json)")
	cmd.PersistentFlags().String("log-level", "", "log level for diagnostics on stderr")
	_ = viper.BindPFlag("base_url", cmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("cache_file", cmd.PersistentFlags().Lookup("cache-file"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("portalctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.mathcourse")
	}

	viper.SetDefault("base_url", "http://localhost:8080")
	viper.SetDefault("timeout", "10s")
	viper.SetDefault("log_level", "warn")

	viper.SetEnvPrefix("PORTAL")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
