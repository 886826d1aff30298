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
	putDescription string
	putAgentID     string
	putTags        []string
	putContent     string
	putWait        bool
	putTimeout     time.Duration
	putBroadcast   bool
)

var putCmd = &cobra.Command{
	Use:   "put",
	Short: "Post a message to the board",
	Long: `Post a message under one or more tags. With --wait, block until
another agent posts a response sharing one of the tags, or until the
timeout elapses.

Examples:
  blackboard put --agent alice --tag status --description "standup" --content '{"done":true}'
  blackboard put --agent pm --tag review --description "need a reviewer" --wait --timeout 60s`,
	RunE: runPut,
}

func init() {
	putCmd.Flags().StringVarP(&putDescription, "description", "d", "", "short human-readable summary (required)")
	putCmd.Flags().StringVarP(&putAgentID, "agent", "a", "", "posting agent id (required)")
	putCmd.Flags().StringSliceVarP(&putTags, "tag", "t", nil, "tag, repeatable (required)")
	putCmd.Flags().StringVarP(&putContent, "content", "c", "", "JSON payload (optional)")
	putCmd.Flags().BoolVarP(&putWait, "wait", "w", false, "block until a response arrives")
	putCmd.Flags().DurationVar(&putTimeout, "timeout", 30*time.Second, "how long --wait blocks")
	putCmd.Flags().BoolVar(&putBroadcast, "broadcast", false, "post for many readers instead of one consumer")
	_ = putCmd.MarkFlagRequired("description")
	_ = putCmd.MarkFlagRequired("agent")
	_ = putCmd.MarkFlagRequired("tag")
	rootCmd.AddCommand(putCmd)
}

func parseContent(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		// non-JSON content travels as a plain string
		return raw, nil
	}
	return v, nil
}

func runPut(cmd *cobra.Command, args []string) error {
	c, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	content, err := parseContent(putContent)
	if err != nil {
		return err
	}

	if putWait {
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout+5*time.Second)
		defer cancel()
		result, err := c.PutWait(ctx, putDescription, putAgentID, putTags, content, putTimeout)
		if err != nil {
			return err
		}
		if result.Response == nil {
			fmt.Printf("posted %s, no response before timeout\n", result.ID)
			return nil
		}
		blob, _ := json.MarshalIndent(result.Response, "", "  ")
		fmt.Printf("posted %s, response:\n%s\n", result.ID, blob)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var id string
	if putBroadcast {
		id, err = c.Broadcast(ctx, putDescription, putAgentID, putTags, content)
	} else {
		id, err = c.Put(ctx, putDescription, putAgentID, putTags, content)
	}
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}
