package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/metastaff/voicekit/pkg/cli"
)

const appName = "voicekit"

var (
	cfgFile      string
	contextName  string
	verbose      bool
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voicekit",
	Short: "Streaming speech recognition client",
	Long: `voicekit streams microphone or file audio to a speech recognition
gateway over WebSocket and prints interim and final transcripts.

Configuration is stored in ~/.voicekit/voicekit/ and supports multiple
contexts, allowing you to switch between different gateways.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.voicekit/voicekit/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context to use (default is current context)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(configCmd)
}

// configErr stores the config load error for deferred reporting.
var configErr error

func initConfig() {
	if cfgFile != "" {
		globalConfig, configErr = cli.LoadConfigWithPath(appName, cfgFile)
		return
	}
	globalConfig = cli.LoadConfigIfExists(appName)
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// getContext returns the context to use, resolving from flag or current context.
func getContext() (*cli.Context, error) {
	if globalConfig == nil {
		if configErr != nil {
			return nil, fmt.Errorf("%s config: %w", appName, configErr)
		}
		// Lazy init: create config on first use.
		var err error
		globalConfig, err = cli.LoadConfig(appName)
		if err != nil {
			return nil, fmt.Errorf("%s config: %w", appName, err)
		}
	}
	return globalConfig.ResolveContext(contextName)
}
