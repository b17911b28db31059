package main

import (
	"fmt"
	"os"

	"github.com/abhisek/coursewalk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "coursewalk:", err)
		os.Exit(cmd.ExitCode(err))
	}
}
