package main

import (
	"fmt"
	"os"

	"github.com/vasylcode/walhist/cmd/walhist"
)

func main() {
	if err := walhist.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
