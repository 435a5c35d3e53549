// Command gempatch replays editor commands over an HTML mock-up and prints
// the resulting iteration patch.
package main

import (
	"context"
	"os"
)

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
