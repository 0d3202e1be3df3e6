package main

import "github.com/wardenhq/warden/cmd/gatewayd/cmd"

func main() {
	cmd.Execute()
}
