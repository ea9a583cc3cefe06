// Package main provides the pagevault CLI.
package main

import "github.com/mesh-intelligence/pagevault/internal/cli"

func main() {
	cli.Execute()
}
