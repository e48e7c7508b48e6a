package main

import (
	"log"

	"github.com/MrSnakeDoc/parley/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ parley failed to start: %v", err)
	}
}
