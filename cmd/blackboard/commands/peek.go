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
	peekAgents []string
	peekTags   []string
	peekSince  int64
)

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "List matching messages without removing them",
	Long: `List messages matching the given agents and tags, leaving them on
the board. With --since, only messages stamped after the given epoch
millisecond timestamp are shown.

Examples:
  blackboard peek --tag status
  blackboard peek --agent alice --since 1756700000000`,
	RunE: runPeek,
}

func init() {
	peekCmd.Flags().StringSliceVarP(&peekAgents, "agent", "a", nil, "match messages from these agents")
	peekCmd.Flags().StringSliceVarP(&peekTags, "tag", "t", nil, "match messages carrying any of these tags")
	peekCmd.Flags().Int64Var(&peekSince, "since", 0, "only messages newer than this epoch-ms timestamp")
	rootCmd.AddCommand(peekCmd)
}

func runPeek(cmd *cobra.Command, args []string) error {
	c, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bank.Filter{AgentIDs: peekAgents, Tags: peekTags}
	var msgs []bank.Message
	if peekSince > 0 {
		msgs, err = c.ReadSince(ctx, filter, peekSince)
	} else {
		msgs, err = c.Peek(ctx, filter)
	}
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("no matching messages")
		return nil
	}
	blob, _ := json.MarshalIndent(msgs, "", "  ")
	fmt.Println(string(blob))
	return nil
}
