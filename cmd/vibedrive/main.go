package main

import "vibedrive/internal/cli"

func main() {
	cli.Execute()
}
