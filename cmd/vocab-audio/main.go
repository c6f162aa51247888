package main

import (
	"os"

	"github.com/book-expert/vocab-audio-service/cmd/vocab-audio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
