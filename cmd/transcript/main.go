package main

import "github.com/alparslanahmed/transcript-parser-go/internal/cli"

func main() {
	cli.Execute()
}
