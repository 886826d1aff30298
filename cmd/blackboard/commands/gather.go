package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/blackboard/internal/bankclient"
)

var (
	gatherAgents  []string
	gatherTags    []string
	gatherTimeout time.Duration
)

var gatherCmd = &cobra.Command{
	Use:   "gather",
	Short: "Wait until every agent has posted under every tag",
	Long: `Block until every listed agent has a message under every listed
tag, or report which (agent, tag) pairs arrived before the timeout.
Messages are left on the board.

Example:
  blackboard gather --agent alice --agent bob --tag finish --timeout 30s`,
	RunE: runGather,
}

func init() {
	gatherCmd.Flags().StringSliceVarP(&gatherAgents, "agent", "a", nil, "agents to wait for (required)")
	gatherCmd.Flags().StringSliceVarP(&gatherTags, "tag", "t", nil, "tags to wait for (required)")
	gatherCmd.Flags().DurationVar(&gatherTimeout, "timeout", 10*time.Second, "how long to wait")
	_ = gatherCmd.MarkFlagRequired("agent")
	_ = gatherCmd.MarkFlagRequired("tag")
	rootCmd.AddCommand(gatherCmd)
}

func runGather(cmd *cobra.Command, args []string) error {
	c, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), gatherTimeout+5*time.Second)
	defer cancel()

	result, err := c.Gather(ctx, gatherAgents, gatherTags, gatherTimeout)
	if err != nil {
		return err
	}
	blob, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(blob))
	if result.Partial {
		return fmt.Errorf("gather incomplete: %d of %d pairs arrived",
			len(result.Completed), len(gatherAgents)*len(gatherTags))
	}
	return nil
}
