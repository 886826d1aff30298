package main

import (
	"fmt"
	"os"

	"github.com/joelkehle/blackboard/cmd/blackboard/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
