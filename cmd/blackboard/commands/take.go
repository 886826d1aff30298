package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/blackboard/internal/bank"
	"github.com/joelkehle/blackboard/internal/bankclient"
)

var (
	takeAgents  []string
	takeTags    []string
	takeBlock   bool
	takeTimeout time.Duration
)

var takeCmd = &cobra.Command{
	Use:   "take",
	Short: "Remove and print the first matching message",
	Long: `Remove the first message matching the given agents and tags. With
--block, wait for one to arrive instead of returning empty-handed.

Examples:
  blackboard take --tag status
  blackboard take --agent alice --tag review --block --timeout 60s`,
	RunE: runTake,
}

func init() {
	takeCmd.Flags().StringSliceVarP(&takeAgents, "agent", "a", nil, "match messages from these agents")
	takeCmd.Flags().StringSliceVarP(&takeTags, "tag", "t", nil, "match messages carrying any of these tags")
	takeCmd.Flags().BoolVarP(&takeBlock, "block", "b", false, "wait for a matching message")
	takeCmd.Flags().DurationVar(&takeTimeout, "timeout", 30*time.Second, "how long --block waits")
	rootCmd.AddCommand(takeCmd)
}

func runTake(cmd *cobra.Command, args []string) error {
	c, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	filter := bank.Filter{AgentIDs: takeAgents, Tags: takeTags}

	var m *bank.Message
	if takeBlock {
		ctx, cancel := context.WithTimeout(context.Background(), takeTimeout+5*time.Second)
		defer cancel()
		m, err = c.TakeWait(ctx, filter, takeTimeout)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		m, err = c.Take(ctx, filter)
	}
	if err != nil {
		return err
	}
	if m == nil {
		fmt.Println("no matching message")
		return nil
	}
	blob, _ := json.MarshalIndent(m, "", "  ")
	fmt.Println(string(blob))
	return nil
}
