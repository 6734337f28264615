package main

import "gsrwatch/internal/cli"

func main() {
	cli.Execute()
}
