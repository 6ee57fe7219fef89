package conn

import (
	"database/sql"
	"net"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config carries the MySQL connection settings.
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// ConfigFromEnv reads the DB_* environment variables, defaulting to a local
// development server.
func ConfigFromEnv() Config {
	cfg := Config{
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_NAME"),
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "3306"
	}
	if cfg.Name == "" {
		cfg.Name = "aidash"
	}
	return cfg
}

// dsn builds the driver DSN for the given database; empty selects none,
// which the bootstrap connection uses to create the target database.
func (c Config) dsn(database string) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, c.Port)
	mc.DBName = database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Open connects to MySQL, creating the target database on first run.
func Open(cfg Config) (*sql.DB, error) {
	admin, err := sql.Open("mysql", cfg.dsn(""))
	if err != nil {
		return nil, err
	}
	if err := admin.Ping(); err != nil {
		admin.Close()
		return nil, err
	}
	_, err = admin.Exec("CREATE DATABASE IF NOT EXISTS `" + cfg.Name + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	admin.Close()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", cfg.dsn(cfg.Name))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
