package main

import (
	"os"

	appLog "courseics/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("courseics failed", err)
		os.Exit(1)
	}
}
