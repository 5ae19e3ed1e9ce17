package main

import "AskArchive/client/archive-cli/cmd"

func main() {
	cmd.Execute()
}
