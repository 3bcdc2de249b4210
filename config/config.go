// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

// Package config loads app configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config carries everything the finance app needs to run: the local
// database path, the remote store endpoints, and the server settings when
// the process also hosts the reference store.
type Config struct {
	// Local side
	DatabasePath string // SQLite file path, ":memory:" is accepted
	OwnerID      string // cloud account the local data belongs to
	DeviceID     string // identifies this device in access tokens

	// Remote side
	RemoteURL string // base URL of the remote store REST API
	FeedURL   string // websocket base URL of the change feed
	Token     string // bearer token for the remote store

	// Server side (only used when serving the reference store)
	DatabaseURL string // Postgres connection string
	JWTSecret   string
	ListenAddr  string
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is fine, real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: envOr("FINANCE_DB_PATH", "finance.db"),
		OwnerID:      os.Getenv("FINANCE_OWNER_ID"),
		DeviceID:     envOr("FINANCE_DEVICE_ID", "default-device"),
		RemoteURL:    os.Getenv("FINANCE_REMOTE_URL"),
		FeedURL:      os.Getenv("FINANCE_FEED_URL"),
		Token:        os.Getenv("FINANCE_TOKEN"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		ListenAddr:   envOr("FINANCE_LISTEN_ADDR", ":8080"),
	}
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("FINANCE_DB_PATH must not be empty")
	}
	return cfg, nil
}

// SyncEnabled reports whether the remote mirror and reconciler should run.
func (c *Config) SyncEnabled() bool {
	return c.RemoteURL != "" && c.OwnerID != ""
}

// ServerEnabled reports whether this process should host the reference
// remote store.
func (c *Config) ServerEnabled() bool {
	return c.DatabaseURL != "" && c.JWTSecret != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
