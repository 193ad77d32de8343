package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/quatton/qgate/apps/qgate/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "qgate crashed: %v\n", r)
			if os.Getenv("QGATE_DEBUG") != "" {
				debug.PrintStack()
			}
			os.Exit(2)
		}
	}()

	cmd.Execute()
}
