package main

import (
	"fmt"
	"os"

	"github.com/penwyp/go-pensieve/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if !commands.Reported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
