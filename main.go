package main

import "upgrader/cmd"

func main() {
	cmd.Execute()
}
