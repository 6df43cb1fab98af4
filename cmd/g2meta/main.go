// Package main provides the g2meta CLI for extracting Gallery2
// metadata and projecting it onto a sigal album tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
