package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/futbridge/config"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Manage the trading server directory",
	Long: `Build and inspect the base64 encoded server directory the bridge uses to
find the connection parameters of a trading system.

Subcommands:
  list     - List the servers in a directory file
  generate - Build a directory file from connection parameter files
  env      - Print the environment block for one server

Examples:
  futbridge servers generate ./params -o rithmic.bin
  futbridge servers list -f rithmic.bin
  futbridge servers env "Rithmic Test_Chicago Area" --user alice`,
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the servers in a directory file",
	Args:  cobra.NoArgs,
	RunE:  runServersList,
}

var serversGenerateCmd = &cobra.Command{
	Use:   "generate <folder>",
	Short: "Build a directory file from <system>_<gateway>_connection_params.txt files",
	Args:  cobra.ExactArgs(1),
	RunE:  runServersGenerate,
}

var serversEnvCmd = &cobra.Command{
	Use:   "env <system_gateway>",
	Short: "Print the environment block for one server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServersEnv,
}

var (
	serversFile   string
	serversOutput string
	serversUser   string
)

func init() {
	rootCmd.AddCommand(serversCmd)
	serversCmd.AddCommand(serversListCmd)
	serversCmd.AddCommand(serversGenerateCmd)
	serversCmd.AddCommand(serversEnvCmd)

	serversCmd.PersistentFlags().StringVarP(&serversFile, "file", "f", "", "server directory file (default from config, built-in test server when missing)")
	serversGenerateCmd.Flags().StringVarP(&serversOutput, "output", "o", "rithmic.bin", "path to write the encoded directory")
	serversEnvCmd.Flags().StringVar(&serversUser, "user", "", "user name for the USER entry")
}

// loadServers reads --file, then the configured file, and falls back to the
// test server when neither exists.
func loadServers() (config.Servers, error) {
	path := serversFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Server.ServersFile
	}
	if _, err := os.Stat(path); os.IsNotExist(err) && serversFile == "" {
		return config.DefaultServers(), nil
	}
	return config.LoadServers(path)
}

func runServersList(cmd *cobra.Command, args []string) error {
	servers, err := loadServers()
	if err != nil {
		return err
	}
	for _, name := range servers.Names() {
		fmt.Println(name)
	}
	return nil
}

func runServersGenerate(cmd *cobra.Command, args []string) error {
	servers, err := config.GenerateServers(args[0])
	if err != nil {
		return err
	}
	data, err := servers.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(serversOutput, data, 0644); err != nil {
		return errors.Wrap(err, "write servers file")
	}
	fmt.Printf("✓ Parsed %d system(s), wrote %s\n", len(servers), serversOutput)
	return nil
}

func runServersEnv(cmd *cobra.Command, args []string) error {
	servers, err := loadServers()
	if err != nil {
		return err
	}
	params, err := servers.Lookup(args[0])
	if err != nil {
		return err
	}
	for _, kv := range params.Env(serversUser) {
		fmt.Println(kv)
	}
	return nil
}
