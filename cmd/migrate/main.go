package main

import (
	"log"
	"os"

	"github.com/yicheng0/tryveo4/internal/pkg/database"
	"github.com/yicheng0/tryveo4/internal/pkg/env"
)

// Schema management runs through GORM AutoMigrate against the model structs.
// This command applies the schema once and exits, for deploy pipelines that
// migrate before rolling the app.
func main() {
	env.SetupEnvFile()

	if len(os.Args) > 1 && os.Args[1] != "up" {
		log.Printf("usage: migrate [up]")
		os.Exit(1)
	}

	database.SetupDatabase()
	log.Printf("schema is up to date")
}
