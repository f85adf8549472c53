package main

import "github.com/panyam/pynarrow/cmd/narrowck/commands"

func main() {
	commands.Execute()
}
