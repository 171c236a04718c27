package main

import (
	"os"

	"github.com/Tokeii0/FakeLinuxBaseLineCheck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
