package main

import "github.com/margo-labs/margo/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
