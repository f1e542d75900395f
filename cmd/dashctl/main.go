package main

import (
	"github.com/joho/godotenv"

	"salesdash/internal/cli"
)

func main() {
	// A missing .env is fine
	_ = godotenv.Load()
	cli.Execute()
}
