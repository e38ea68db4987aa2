package main

import "github.com/jmcleod/keyguard/cmd/keyguard/cmd"

func main() {
	cmd.Execute()
}
