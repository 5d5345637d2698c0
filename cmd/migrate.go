package main

import (
	"log"

	"github.com/quangdao0809/ganh-hat-loto/config"
)

func main() {
	cfg := config.Load()
	db := config.SetupDatabase(cfg.DatabaseURL) // connects + migrates
	_ = db
	log.Println("✅ Database migration completed successfully")
}
