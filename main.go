package main

import "github.com/findly-app/findly/cmd"

func main() {
	cmd.Execute()
}
