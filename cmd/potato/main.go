package main

import "github.com/mcoot/hotpotato/internal/cli"

func main() {
	cli.Execute()
}
