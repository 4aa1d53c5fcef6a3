package main

import (
	"log"

	"github.com/MrSnakeDoc/mapmarks/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ mapmarks failed to start: %v", err)
	}
}
