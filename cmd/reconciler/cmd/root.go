package cmd

import (
	"fmt"
	"os"
	"strings"

	"golang-bankrec-service/cmd/reconciler/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reconciler",
	Short: "Bank statement reconciliation tool",
	Long: `Reconciler matches bank statement lines against open receivables and
payables, builds the balanced journal entry for each line and posts it.

The chart of accounts, partners, taxes, reconcile models and currency rates
come from a YAML ledger fixture; statement and ledger lines live in a SQLite
database created by 'reconciler init'.

Examples:
  reconciler init --fixture ledger.yaml --db bankrec.db
  reconciler reconcile --line 3 --rules --validate
  reconciler reconcile --line 5 --match 2 --output-format json
  reconciler autoreconcile --batch-size 50 --time-budget 30s
  reconciler summary --journal 1
  reconciler serve --addr :8080 --queue bankrec.bolt`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	config.SetDefaults(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional)")
	flags.StringVar(&envFile, "env-file", "", "dotenv file loaded before the environment is read (default .env when present)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	flags.String("db", "bankrec.db", "path to the SQLite ledger database")
	flags.String("fixture", "ledger.yaml", "path to the YAML ledger fixture")
	flags.String("queue", "", "path to the bbolt continuation queue (optional)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text, json")
	flags.StringP("output-format", "f", "console", "output format: console, json, csv")
	flags.StringP("output-file", "o", "", "output file path (default: stdout)")

	for _, name := range []string{
		"verbose", "db", "fixture", "queue", "log-level", "log-format", "output-format", "output-file",
	} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading env file: %s\n", err)
		os.Exit(1)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// BANKREC_DB, BANKREC_OUTPUT_FORMAT, ...
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
