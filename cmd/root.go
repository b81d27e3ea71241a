/*
Copyright © 2025 Oleh Solomko <oleh.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "doctran",
	Short: "CLI client for the Academic Document Translator service",
	Long: `A command-line client for the Academic Document Translator service.

Upload .docx documents, track their translation (including large jobs the
server runs as background tasks), browse and download results, and manage
your subscription.

Sign in first: "doctran signin --email you@example.com --password ..."
then translate: "doctran translate -i thesis.docx -t af"`,
	Version: version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $HOME/.doctran.yaml)")
	rootCmd.PersistentFlags().String("api-url", "http://localhost:8000", "Base URL of the translation service")
	rootCmd.PersistentFlags().String("db", "./data/doctran.db", "Path to the local state database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".doctran")
		}
	}

	viper.SetEnvPrefix("DOCTRAN")
	viper.AutomaticEnv()

	// PayFast fallback used when the server does not hand back a full
	// redirect form.
	viper.SetDefault("payfast.process_url", "https://www.payfast.co.za/eng/process")
	viper.SetDefault("payfast.merchant_id", "10000100")
	viper.SetDefault("payfast.merchant_key", "46f0cd694581a")
	viper.SetDefault("payfast.return_url", "http://localhost:3000/success")
	viper.SetDefault("payfast.cancel_url", "http://localhost:3000/cancel")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
