package main

import "github.com/catalyst/userkey/cmd"

func main() {
	cmd.Execute()
}
