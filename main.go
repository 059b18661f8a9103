package main

import "imgpilot/cmd"

func main() {
	cmd.Execute()
}
