package main

import "github.com/wardenhq/warden/cmd/validatord/cmd"

func main() {
	cmd.Execute()
}
