package main

import "github.com/AzielCF/az-flow/cmd"

func main() {
	cmd.Execute()
}
