package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	cliruntime "github.com/tomasbasham/cli-runtime"

	"resumeboost/internal/cmd"
)

func main() {
	command := cmd.NewRootCommand()
	if code := cliruntime.Run(command); code != 0 {
		os.Exit(code)
	}
}
