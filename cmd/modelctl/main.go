package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	serverURL string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelctl",
		Short: "Administer the disease model serving daemon",
		Long: `A command-line interface for inspecting and administering the
model serving daemon: version switching, rollback, cache control, and
operational metrics.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.modelctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "serving daemon base URL")

	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(newModelsCmd())
	rootCmd.AddCommand(newSetVersionCmd())
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newReloadCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newClearCacheCmd())
	rootCmd.AddCommand(newMetricsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".modelctl")
	}

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MODELCTL")

	_ = viper.ReadInConfig()

	if serverURL == "" {
		serverURL = viper.GetString("server_url")
	}
}
