package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkin/internal/checkin/db"
	"ms-checkin/internal/config"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/qr"
)

func openDB(sqlitePath, dsn string) (*bun.DB, error) {
	if sqlitePath != "" {
		sqldb, err := sql.Open("sqlite", sqlitePath)
		if err != nil {
			return nil, err
		}
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	}
	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Ping(); err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	sqlitePath := flag.String("sqlite", "", "seed a SQLite file instead of POSTGRES_DSN")
	name := flag.String("event", "Wedding Reception", "event name")
	host := flag.String("host", "Layla & Omar", "event host")
	anonymous := flag.Int("anonymous", 20, "number of anonymous tickets")
	batch := flag.Int("batch", 1, "anonymous ticket batch number")
	anonExpiry := flag.Duration("anonymous-expiry", 0, "anonymous ticket lifetime after the event date, zero for none")
	qrDir := flag.String("qr-dir", "", "write a PNG QR image per seeded code into this directory")
	announce := flag.Bool("announce", false, "publish a tickets changed message to Kafka")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	bunDB, err := openDB(*sqlitePath, cfg.Database.DSN)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	defer bunDB.Close()

	if err := db.CreateTables(ctx, bunDB); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to create tables: %v", err))
	}

	result, err := seed(ctx, db.New(bunDB), seedOptions{
		EventName:   *name,
		Host:        *host,
		EventDate:   time.Now().Add(24 * time.Hour).Truncate(time.Hour),
		Guests:      demoGuests,
		Anonymous:   *anonymous,
		Batch:       *batch,
		AnonymousIn: *anonExpiry,
	})
	if err != nil {
		logger.Fatal("SEED", err.Error())
	}
	logger.Info("SEED", fmt.Sprintf("✅ Event %d seeded with %d tickets", result.Event.ID, len(result.Codes)))
	fmt.Println(strings.Join(result.Codes, "\n"))

	if *qrDir != "" {
		if err := qr.WriteFiles(*qrDir, result.Labels); err != nil {
			logger.Fatal("SEED", err.Error())
		}
		logger.Info("SEED", fmt.Sprintf("QR images written to %s", *qrDir))
	}

	if *announce && len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		change := models.TicketsChangedEvent{EventID: result.Event.ID, Codes: result.Codes}
		if err := producer.Publish(ctx, cfg.Kafka.Topics.TicketsChanged, fmt.Sprint(result.Event.ID), change); err != nil {
			logger.Error("KAFKA", fmt.Sprintf("Failed to announce seeded tickets: %v", err))
		}
	}
}
