package main

import "floodguard-be/internal/cli"

func main() {
	cli.Execute()
}
