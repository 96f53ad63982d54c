package database

import "github.com/m3rciful/scenebot/core/config"

// Config holds database connection settings.
type Config = config.DatabaseConfig
