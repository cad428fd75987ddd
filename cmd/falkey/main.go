package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
)

func main() {
	var (
		keyFlag   string
		labelFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "fal API key (falls back to FAL_KEY)")
	flag.StringVar(&labelFlag, "label", "", "optional note stored with the key")
	flag.Parse()

	_ = godotenv.Load(".env", ".env.local")

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("FAL_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "fal API key is required via -key or FAL_KEY")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "falkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	props := map[string]any{"stored_at": time.Now().UTC().Format(time.RFC3339)}
	if label := strings.TrimSpace(labelFlag); label != "" {
		props["label"] = label
	}
	if err := store.SetFalAPIKey(ctx, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist fal api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("fal API key stored successfully")
}
