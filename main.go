package main

import "github.com/RyanBlaney/beatscope/cmd"

func main() {
	cmd.Execute()
}
