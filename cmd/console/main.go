// Package main is the console binary: the gateway over the ReviewHub store
// containers, a terminal client for them and a mock backend.
package main

import (
	"fmt"
	"os"
	"runtime"

	"reviewhub-console/internal/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	os.Exit(cli.Execute())
}
