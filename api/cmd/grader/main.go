package main

import (
	"echo-grade/api/internal/cli"
)

// main hands control to the cobra root command.
func main() {
	cli.Execute()
}
