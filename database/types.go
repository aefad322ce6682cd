/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AbstractDatabaseManager defines the operations for managing a database
// connection, running migrations, initializing data, and reporting health.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Reconnect(ctx context.Context) error
	Ping(ctx context.Context) error
	HealthCheck(ctx context.Context) *HealthStatus
	GetDB() *bun.DB
	GetSQLDB() *sql.DB
	RunMigrations(ctx context.Context) error
	InitData(ctx context.Context) error
	GetStats() *DBStats
	SetLogger(logger Logger)
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// ConnectionConfig describes how to connect to a database and tune its pool.
// The env tags are relative; the application config mounts the struct under
// the DB_ prefix.
type ConnectionConfig struct {
	Type                string        `json:"type" env:"TYPE" envDefault:"sqlite"` // postgres, mysql, sqlite
	Host                string        `json:"host" env:"HOST" envDefault:"localhost"`
	Port                int           `json:"port" env:"PORT" envDefault:"5432"`
	Username            string        `json:"username" env:"USERNAME"`
	Password            string        `json:"-" env:"PASSWORD"`
	DBName              string        `json:"dbname" env:"NAME" envDefault:"itemhub"`
	SSLMode             string        `json:"sslmode" env:"SSLMODE" envDefault:"disable"`
	MaxIdleConns        int           `json:"max_idle_conns" env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns        int           `json:"max_open_conns" env:"MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" envDefault:"1h"`
	ConnMaxIdleTime     time.Duration `json:"conn_max_idle_time" env:"CONN_MAX_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout      time.Duration `json:"connect_timeout" env:"CONNECT_TIMEOUT" envDefault:"10s"`
	ReadTimeout         time.Duration `json:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout        time.Duration `json:"write_timeout" env:"WRITE_TIMEOUT" envDefault:"30s"`
	EnableReconnect     bool          `json:"enable_reconnect" env:"ENABLE_RECONNECT" envDefault:"true"`
	ReconnectInterval   time.Duration `json:"reconnect_interval" env:"RECONNECT_INTERVAL" envDefault:"5s"`
	MaxReconnectTries   int           `json:"max_reconnect_tries" env:"MAX_RECONNECT_TRIES" envDefault:"3"`
	HealthCheckInterval time.Duration `json:"health_check_interval" env:"HEALTH_CHECK_INTERVAL" envDefault:"5m"`
	EnableQueryLog      bool          `json:"enable_query_log" env:"ENABLE_QUERY_LOG" envDefault:"false"`
	SlowQueryTime       time.Duration `json:"slow_query_time" env:"SLOW_QUERY_TIME" envDefault:"2s"`
}

// IsSQLite reports whether the configured backend is sqlite.
func (c *ConnectionConfig) IsSQLite() bool {
	return c.Type == "sqlite" || c.Type == "sqlite3"
}

// DataMigrateConfig controls schema migration behavior on startup.
type DataMigrateConfig struct {
	EnableMigrateOnStartup bool   `json:"enable_migrate_on_startup" env:"MIGRATE_ON_STARTUP" envDefault:"true"`
	EnableForeignKey       bool   `json:"enable_foreign_key" env:"ENABLE_FOREIGN_KEY" envDefault:"true"`
	ForeignKeyFile         string `json:"foreign_key_file" env:"FOREIGN_KEY_FILE" envDefault:"configs/foreign_keys.yaml"`
}

// DataInitConfig controls data seeding behavior and environment selection.
type DataInitConfig struct {
	AutoInitOnStartup   bool   `json:"auto_init_on_startup" env:"INIT_ON_STARTUP" envDefault:"false"`
	AutoInitOnMigration bool   `json:"auto_init_on_migration" env:"INIT_ON_MIGRATION" envDefault:"false"`
	Filepath            string `json:"filepath" env:"INIT_PATH" envDefault:"configs/sql"`
	Environment         string `json:"environment" env:"INIT_ENV"`
}

// Config aggregates connection, migration, and data initialization settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `json:"connection_config"`
	DataMigrateConfig DataMigrateConfig `json:"data_migrate_config"`
	DataInitConfig    DataInitConfig    `json:"data_init_config"`
}

// DefaultConnectionConfig returns a connection config with the same defaults
// the env tags declare.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:                "sqlite",
		Host:                "localhost",
		Port:                5432,
		DBName:              "itemhub",
		SSLMode:             "disable",
		MaxIdleConns:        10,
		MaxOpenConns:        100,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     time.Minute * 30,
		ConnectTimeout:      time.Second * 10,
		ReadTimeout:         time.Second * 30,
		WriteTimeout:        time.Second * 30,
		EnableReconnect:     true,
		ReconnectInterval:   time.Second * 5,
		MaxReconnectTries:   3,
		HealthCheckInterval: time.Minute * 5,
		EnableQueryLog:      false,
		SlowQueryTime:       time.Second * 2,
	}
}

// DefaultConfig returns a Config with default connection settings,
// migrations on startup and foreign keys enabled.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: *DefaultConnectionConfig(),
		DataMigrateConfig: DataMigrateConfig{
			EnableMigrateOnStartup: true,
			EnableForeignKey:       true,
			ForeignKeyFile:         "configs/foreign_keys.yaml",
		},
		DataInitConfig: DataInitConfig{
			Filepath: "configs/sql",
		},
	}
}
