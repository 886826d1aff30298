package commands

import (
	"github.com/spf13/cobra"
)

var serverAddr string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blackboard",
	Short: "Client for the blackboard message bank",
	Long: `blackboard talks to a running blackboardd daemon over its TCP
line protocol. Agents post messages under tags, consume them with
filters, and coordinate through blocking waits and gathers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI. Called once from main.
func Execute() error {
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:4545", "daemon address")
}
