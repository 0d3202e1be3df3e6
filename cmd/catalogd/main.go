package main

import "github.com/wardenhq/warden/cmd/catalogd/cmd"

func main() {
	cmd.Execute()
}
