package main

import "github.com/tupyy/rigctl/cmd"

func main() {
	cmd.Execute()
}
