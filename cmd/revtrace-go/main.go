package main

import (
	"log"

	"github.com/revtrace/revtrace-go/internal/application/startup"
)

func main() {
	if err := startup.Initialize(); err != nil {
		log.Fatalf("Startup failed: %v", err)
	}
}
