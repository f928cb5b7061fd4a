package main

import (
	"flag"
	"os"

	"github.com/connvault/connvault/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the YAML configuration file")
	flag.Parse()

	if errRun := app.Run(*configPath); errRun != nil {
		log.Fatalf("server exited: %v", errRun)
	}
}

func defaultConfigPath() string {
	if v := os.Getenv("CONNVAULT_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
