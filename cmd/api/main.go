package main

import (
	"os"

	"github.com/praxislearn/curricula/internal/config"
	"github.com/praxislearn/curricula/pkg/server"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	config.LoadEnvFiles([]string{".env.local", ".env.development", ".env"})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	if err := server.NewServer(cfg).Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
