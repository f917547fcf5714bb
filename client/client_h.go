package client

import (
	"net/http"
)

// Config holds necessary constants for initiating the LeaderboardClient
type Config struct {
	ServerAddress string
	Timeout       int // seconds
}

type methods struct {
	HealthCheck string
	Top         string
	Hash        string
}

// LeaderboardClient holds data needed to perform custom http requests
type LeaderboardClient struct {
	ServerAddress string
	Client        http.Client
	Methods       methods
}
