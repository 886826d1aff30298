package commands

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joelkehle/blackboard/internal/bank"
	"github.com/joelkehle/blackboard/internal/bankclient"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a multi-agent coordination walkthrough against a daemon",
	Long: `Run two scenarios against a live daemon: a team of engineers whose
project manager gathers completion reports, and a request/response
exchange between two agents.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

var (
	demoHeader = color.New(color.FgCyan, color.Bold)
	demoAgent  = color.New(color.FgGreen)
	demoPM     = color.New(color.FgYellow)
	demoWarn   = color.New(color.FgRed)
)

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	demoHeader.Println("== scenario 1: team standup ==")
	if err := demoStandup(ctx); err != nil {
		return err
	}

	demoHeader.Println("\n== scenario 2: request and response ==")
	return demoRequestResponse(ctx)
}

// demoStandup has three engineers announce, work, and report, while a
// project manager gathers their completion reports and retries until
// everyone has checked in.
func demoStandup(ctx context.Context) error {
	engineers := []string{"alice", "bob", "carol"}

	for _, name := range engineers {
		name := name
		go func() {
			c, err := bankclient.Dial(serverAddr)
			if err != nil {
				demoWarn.Printf("%s could not connect: %v\n", name, err)
				return
			}
			defer c.Close()

			if _, err := c.Broadcast(ctx, "starting work", name, []string{"start"}, nil); err != nil {
				demoWarn.Printf("%s failed to announce: %v\n", name, err)
				return
			}
			demoAgent.Printf("%s: starting work\n", name)

			time.Sleep(time.Duration(500+rand.Intn(2000)) * time.Millisecond)

			if _, err := c.Broadcast(ctx, "feature complete", name, []string{"finish"},
				map[string]any{"engineer": name}); err != nil {
				demoWarn.Printf("%s failed to report: %v\n", name, err)
				return
			}
			demoAgent.Printf("%s: feature complete\n", name)
		}()
	}

	pm, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer pm.Close()

	for attempt := 1; ; attempt++ {
		demoPM.Printf("pm: waiting for the team (attempt %d)\n", attempt)
		result, err := pm.Gather(ctx, engineers, []string{"finish"}, 2*time.Second)
		if err != nil {
			return err
		}
		for _, pair := range result.Completed {
			demoPM.Printf("pm: %s reported under %q\n", pair[0], pair[1])
		}
		if !result.Partial {
			demoPM.Println("pm: everyone has checked in, shipping it")
			return nil
		}
		demoWarn.Printf("pm: only %d of %d reports in, retrying\n",
			len(result.Completed), len(engineers))
	}
}

// demoRequestResponse has one agent post a question and block for an
// answer while another picks it up and responds.
func demoRequestResponse(ctx context.Context) error {
	go func() {
		c, err := bankclient.Dial(serverAddr)
		if err != nil {
			demoWarn.Printf("reviewer could not connect: %v\n", err)
			return
		}
		defer c.Close()

		m, err := c.TakeWait(ctx, bank.Filter{Tags: []string{"review"}}, 10*time.Second)
		if err != nil || m == nil {
			demoWarn.Printf("reviewer found no request: %v\n", err)
			return
		}
		demoAgent.Printf("reviewer: picked up %q from %s\n", m.Description, m.AgentID)

		if _, err := c.Put(ctx, "review verdict", "reviewer", []string{"review"},
			map[string]any{"verdict": "approved"}); err != nil {
			demoWarn.Printf("reviewer failed to respond: %v\n", err)
		}
	}()

	dev, err := bankclient.Dial(serverAddr)
	if err != nil {
		return err
	}
	defer dev.Close()

	demoAgent.Println("dev: requesting a code review")
	result, err := dev.PutWait(ctx, "please review my change", "dev",
		[]string{"review"}, map[string]any{"pr": 42}, 15*time.Second)
	if err != nil {
		return err
	}
	if result.Response == nil {
		demoWarn.Println("dev: no response before the timeout")
		return nil
	}
	demoAgent.Printf("dev: got a response from %s: %v\n",
		result.Response.AgentID, result.Response.Content)
	fmt.Println()
	return nil
}
