package main

import "github.com/tanq16/ripfetch/cmd"

func main() {
	cmd.Execute()
}
