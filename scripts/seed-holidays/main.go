package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/noah-isme/tutoring-center-api/pkg/config"
	"github.com/noah-isme/tutoring-center-api/pkg/database"
)

// Loads a CSV of holidays (date,label per line, YYYY-MM-DD) into the
// holidays table. Existing dates are left untouched.
func main() {
	var (
		path      string
		createdBy string
	)
	flag.StringVar(&path, "file", "holidays.csv", "Path to the holidays CSV")
	flag.StringVar(&createdBy, "created-by", "seed-script", "Actor recorded on inserted rows")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		log.Fatalf("failed to parse csv: %v", err)
	}

	ctx := context.Background()
	const query = `INSERT INTO holidays (id, date, label, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (date) DO NOTHING`

	inserted := 0
	for i, record := range records {
		if len(record) < 2 {
			log.Fatalf("line %d: expected date,label", i+1)
		}
		date, err := time.ParseInLocation("2006-01-02", record[0], time.UTC)
		if err != nil {
			log.Fatalf("line %d: invalid date %q", i+1, record[0])
		}
		res, err := db.ExecContext(ctx, query, uuid.NewString(), date, record[1], createdBy, time.Now().UTC())
		if err != nil {
			log.Fatalf("line %d: insert failed: %v", i+1, err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			inserted++
		}
	}

	fmt.Printf("seeded %d of %d holidays\n", inserted, len(records))
}
