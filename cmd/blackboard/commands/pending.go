package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/blackboard/internal/bankclient"
)

var pendingAgent string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List agents currently waiting on a response",
	RunE:  runPending,
}

func init() {
	pendingCmd.Flags().StringVarP(&pendingAgent, "agent", "a", "", "only requests from this agent")
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, args []string) error {
	c, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pending, err := c.Pending(ctx, pendingAgent)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending requests")
		return nil
	}
	blob, _ := json.MarshalIndent(pending, "", "  ")
	fmt.Println(string(blob))
	return nil
}
