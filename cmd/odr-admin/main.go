package main

import (
	"fmt"
	"os"

	"github.com/r9s-ai/open-data-router/internal/admincli"
)

func main() {
	if err := admincli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
