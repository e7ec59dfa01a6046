package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/metastaff/voicekit/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI configuration",
	Long: `Manage CLI configuration and contexts.

Contexts allow you to manage multiple gateway configurations,
similar to kubectl's context management.

Configuration is stored in ~/.voicekit/voicekit/config.yaml`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with the specified name.

Example:
  voicekit config add-context dev --gateway-url ws://localhost:9090/asr

  voicekit config add-context prod \
    --gateway-url wss://asr.example.com/v2 \
    --api-key YOUR_KEY \
    --capture-cmd "arecord -q -f S16_LE -r 48000 -c 1 -t raw -"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		gatewayURL, err := cmd.Flags().GetString("gateway-url")
		if err != nil {
			return fmt.Errorf("failed to read 'gateway-url' flag: %w", err)
		}
		if gatewayURL == "" {
			return fmt.Errorf("--gateway-url is required")
		}

		apiKey, err := cmd.Flags().GetString("api-key")
		if err != nil {
			return fmt.Errorf("failed to read 'api-key' flag: %w", err)
		}
		captureCmd, err := cmd.Flags().GetString("capture-cmd")
		if err != nil {
			return fmt.Errorf("failed to read 'capture-cmd' flag: %w", err)
		}

		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}
		cfg.AddContext(&cli.Context{
			Name:           name,
			GatewayURL:     gatewayURL,
			APIKey:         apiKey,
			CaptureCommand: captureCmd,
		})
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("context %q saved", name)
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Switch the current context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("switched to context %q", args[0])
		return nil
	},
}

var configRemoveContextCmd = &cobra.Command{
	Use:   "remove-context <name>",
	Short: "Remove a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}
		if err := cfg.RemoveContext(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("context %q removed", args[0])
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadOrInitConfig()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CURRENT\tNAME\tGATEWAY")
		for name, ctx := range cfg.Contexts {
			marker := ""
			if name == cfg.CurrentContext {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", marker, name, ctx.GatewayURL)
		}
		return w.Flush()
	},
}

func loadOrInitConfig() (*cli.Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := cli.LoadConfig(appName)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

func init() {
	configAddContextCmd.Flags().String("gateway-url", "", "recognition gateway WebSocket URL")
	configAddContextCmd.Flags().String("api-key", "", "gateway authentication token")
	configAddContextCmd.Flags().String("capture-cmd", "", "microphone capture command")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configRemoveContextCmd)
	configCmd.AddCommand(configListContextsCmd)
}
