package main

import "github.com/KaramelBytes/pipeflow-cli/cmd"

func main() {
	cmd.Execute()
}
