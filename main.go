package main

import "github.com/brickpulse/brickpulse/cmd"

func main() {
	cmd.Execute()
}
