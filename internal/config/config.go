// config.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlite-nocgo, sqlserver
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Attachment storage configuration
	StorageType       string // local, s3
	StorageLocalPath  string
	StorageS3Bucket   string
	StorageS3Region   string
	StorageS3Endpoint string

	// Logging configuration
	LogLevel  string
	LogFormat string // text, json

	// Optional fixture loaded into an empty store at startup
	SeedFile string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_TYPE", "sqlite")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_DATABASE", "")
	v.SetDefault("DB_USER", "")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_CONNECTION_LIMIT", 5)
	v.SetDefault("STORAGE_TYPE", "local")
	v.SetDefault("STORAGE_LOCAL_PATH", "attachment_storage")
	v.SetDefault("STORAGE_S3_BUCKET", "")
	v.SetDefault("STORAGE_S3_REGION", "")
	v.SetDefault("STORAGE_S3_ENDPOINT", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SEED_FILE", "")
	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("PORT"),
		DBType:            strings.ToLower(v.GetString("DB_TYPE")),
		DBHost:            v.GetString("DB_HOST"),
		DBPort:            v.GetString("DB_PORT"),
		DBDatabase:        v.GetString("DB_DATABASE"),
		DBUser:            v.GetString("DB_USER"),
		DBPassword:        v.GetString("DB_PASSWORD"),
		DBConnectionLimit: v.GetInt("DB_CONNECTION_LIMIT"),
		StorageType:       strings.ToLower(v.GetString("STORAGE_TYPE")),
		StorageLocalPath:  v.GetString("STORAGE_LOCAL_PATH"),
		StorageS3Bucket:   v.GetString("STORAGE_S3_BUCKET"),
		StorageS3Region:   v.GetString("STORAGE_S3_REGION"),
		StorageS3Endpoint: v.GetString("STORAGE_S3_ENDPOINT"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         strings.ToLower(v.GetString("LOG_FORMAT")),
		SeedFile:          v.GetString("SEED_FILE"),
	}

	if cfg.DBConnectionLimit <= 0 {
		cfg.DBConnectionLimit = 5
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	switch cfg.DBType {
	case "mysql", "mariadb", "postgres", "postgresql", "sqlite", "sqlite-nocgo", "sqlserver", "mssql":
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE: %s", cfg.DBType)
	}
	switch cfg.StorageType {
	case "local":
		if cfg.StorageLocalPath == "" {
			return nil, fmt.Errorf("STORAGE_LOCAL_PATH is required for local storage")
		}
	case "s3":
		if cfg.StorageS3Bucket == "" {
			return nil, fmt.Errorf("STORAGE_S3_BUCKET is required for s3 storage")
		}
		if cfg.StorageS3Region == "" {
			return nil, fmt.Errorf("STORAGE_S3_REGION is required for s3 storage")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_TYPE: %s", cfg.StorageType)
	}

	return cfg, nil
}
