package main

import "packwatch/cmd/packwatch/cmd"

func main() {
	cmd.Execute()
}
