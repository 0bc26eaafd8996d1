package main

import "pulsewire/internal/cli"

func main() {
	cli.Execute()
}
