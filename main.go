package main

import "github.com/bz888/eyesy-bot/cmd"

func main() {
	cmd.Execute()
}
