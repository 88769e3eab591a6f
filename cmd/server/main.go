package main

import "hajj-management/internal/cli"

func main() {
	cli.Execute()
}
