package main

import "github/chapool/go-wallet-engine/cmd"

func main() {
	cmd.Execute()
}
