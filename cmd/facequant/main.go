package main

import "facequant/internal/cli"

func main() {
	cli.Execute()
}
