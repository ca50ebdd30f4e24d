package main

import "github.com/maxvaer/secprobe/cmd"

func main() {
	cmd.Execute()
}
