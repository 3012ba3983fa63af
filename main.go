package main

import "github.com/kozaktomas/gym-gate/cmd"

func main() {
	cmd.Execute()
}
