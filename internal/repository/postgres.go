package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/heartcare-ai/heartcare/internal/domain"
	_ "github.com/lib/pq"
)

// openPostgres opens a PostgreSQL connection through lib/pq.
func openPostgres(cfg domain.RepositoryConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return db, nil
}

// postgresDSN builds a key/value connection string with defaults filled in.
func postgresDSN(cfg domain.RepositoryConfig) string {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "heartcare"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	parts := []string{
		"host=" + quoteDSN(host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quoteDSN(dbname),
		"sslmode=" + sslmode,
	}
	if cfg.PostgresUser != "" {
		parts = append(parts, "user="+quoteDSN(cfg.PostgresUser))
	}
	if cfg.PostgresPassword != "" {
		parts = append(parts, "password="+quoteDSN(cfg.PostgresPassword))
	}
	return strings.Join(parts, " ")
}

// quoteDSN quotes a value when it contains spaces or quotes.
func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
