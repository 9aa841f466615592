package main

import (
	"github.com/joho/godotenv"

	"stock-target-alerts/internal/cli"
)

func main() {
	// Best effort: a missing .env simply means env vars come from the shell.
	_ = godotenv.Load()

	cli.Execute()
}
