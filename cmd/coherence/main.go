// Command coherence tracks dyad coherence from the terminal or as a service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/danielpatrickdp/coherence-tracker/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
