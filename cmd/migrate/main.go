package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/lib/pq"

	"github.com/NT710/willmyflightbelate/internal/store/migrations"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DB_CONN_STR"), "Database connection string")
	rollback := flag.Bool("rollback", false, "Revert the most recently applied migration")
	flag.Parse()

	if *dbURL == "" {
		log.Println("Database connection string required (-db or DB_CONN_STR)")
		os.Exit(1)
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Printf("Failed to ping database: %v", err)
		os.Exit(1)
	}

	runner := migrations.NewRunner(db)

	if *rollback {
		if err := runner.Revert(migrations.All); err != nil {
			log.Printf("Failed to revert migrations: %v", err)
			os.Exit(1)
		}
		log.Println("Migration reverted")
		return
	}

	if err := runner.Apply(migrations.All); err != nil {
		log.Printf("Failed to apply migrations: %v", err)
		os.Exit(1)
	}
	log.Println("Migrations applied")
}
