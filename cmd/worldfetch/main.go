package main

import "github.com/park285/growworld-bot/internal/cli"

func main() {
	cli.Execute()
}
