package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hocvui-edu/hocvui_api/model"
	"github.com/hocvui-edu/hocvui_api/seed/seeders"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var (
		dsn  = flag.String("dsn", "", "Database DSN (overrides DATABASE_URL env var)")
		help = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	database := *dsn
	if database == "" {
		database = databaseDSN()
	}

	db, err := gorm.Open(postgres.Open(database), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&model.Identity{}, &model.IdentityProgress{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	adminSeeder := seeders.NewAdminSeeder(db)
	if err := adminSeeder.SeedAdmin(); err != nil {
		log.Fatalf("Failed to seed admin identity: %v", err)
	}

	log.Println("Seeding operation completed successfully!")
}

func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	host := envOr("DB_HOST", "localhost")
	port := envOr("DB_PORT", "5432")
	user := envOr("DB_USER", "postgres")
	password := envOr("DB_PASSWORD", "postgres")
	dbname := envOr("DB_NAME", "hocvui_api")
	sslmode := envOr("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		host, user, password, dbname, port, sslmode)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func showHelp() {
	log.Println(`
Database Seeding Tool for the HocVui identity backend

Usage: go run seed/main.go [flags]

Flags:
  -dsn string
        Database DSN (overrides DATABASE_URL environment variable)
  -help
        Show this help message

Environment Variables:
  DATABASE_URL    - Full postgres DSN
  DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME/DB_SSLMODE - DSN parts
  ADMIN_EMAIL     - Email for the seeded admin identity
  ADMIN_PASSWORD  - Password for the seeded admin identity`)
}
