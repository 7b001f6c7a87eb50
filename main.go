package main

import "github.com/testbench/inspection-agent/cmd"

func main() {
	cmd.Execute()
}
