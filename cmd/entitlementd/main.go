package main

import "github.com/wardenhq/warden/cmd/entitlementd/cmd"

func main() {
	cmd.Execute()
}
