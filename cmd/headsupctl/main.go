package main

import (
	"fmt"
	"os"

	"github.com/radieske/headsup-settlement/internal/headsupctl"
)

func main() {
	if err := headsupctl.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
