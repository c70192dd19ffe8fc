package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const SearchLimit = 10

var db *gorm.DB

func GetDB() *gorm.DB {
	return db
}

func init() {
	godotenv.Load()
	// Do NOT block startup waiting for the DB here; main() connects after
	// the HTTP listener is up so Cloud Run sees a healthy container.
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := buildDSN()
	for attempt := 1; ; attempt++ {
		var err error
		db, err = gorm.Open(mysql.Open(dsn), initConfig())
		if err == nil {
			tuneConnectionPool(db)
			if pluginErr := db.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			if pluginErr := db.Use(NewTenantGuardPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install tenant guard plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func buildDSN() string {
	dbHost := os.Getenv("DB_HOST")

	network := "tcp"
	address := fmt.Sprintf("%s:%s", dbHost, os.Getenv("DB_PORT"))

	// Cloud Run + Cloud SQL: a DB_HOST of "/cloudsql/<CONNECTION_NAME>" means
	// the Cloud SQL Auth Proxy exposes a Unix domain socket, e.g.
	// DB_HOST=/cloudsql/bodegas-483906:asia-southeast1:bodegas-mysql-dev
	if strings.HasPrefix(dbHost, "/cloudsql/") {
		network = "unix"
		address = dbHost
	}

	return fmt.Sprintf("%s:%s@%s(%s)/%s?multiStatements=true&parseTime=true",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		network,
		address,
		os.Getenv("DB_NAME"),
	)
}

// tuneConnectionPool applies database/sql pool limits. Defaults suit a small
// Cloud SQL instance; override per environment with DB_MAX_OPEN_CONNS,
// DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME_SECONDS and
// DB_CONN_MAX_IDLE_TIME_SECONDS.
func tuneConnectionPool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 50); maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 25); maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if lifetime := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); lifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(lifetime) * time.Second)
	}
	if idleTime := intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); idleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(idleTime) * time.Second)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
