package cmd

import (
	"fmt"
	"strings"

	"github.com/eliran89c/tag-janitor/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information
	version = "dev"
	arch    = "dev"

	// Flags
	cfgFile string
)

var (
	rootCmd = &cobra.Command{
		Use:          "tag-janitor",
		SilenceUsage: true,
		Short:        "Flag tagged cloud resources for cleanup.",
		Long: `Tag Janitor scans cloud resources (initially AWS) and evaluates them against the
tagged-instance cleanup rule: a running instance whose owner set the cleanup tag to
"true" is flagged for cleanup, everything else is left alone.

Tag Janitor only reports verdicts. It never stops, terminates or modifies a resource.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TagJanitor version %v %v\n", version, arch)
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(awsCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (YAML).")
	rootCmd.PersistentFlags().String("policy", "", "The path to the policy file (YAML format).")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error.")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format: console or json.")

	_ = viper.BindPFlag("policy", rootCmd.PersistentFlags().Lookup("policy"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() error {
	// .env is optional
	_ = godotenv.Load()

	viper.SetEnvPrefix("JANITOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func newLogger() zerolog.Logger {
	return logging.New(logging.Config{
		Level:  viper.GetString("log-level"),
		Format: viper.GetString("log-format"),
	})
}
