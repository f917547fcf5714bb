package common

import (
	"log"
)

// Logger holds several logger instances with different prefixes
type Logger struct {
	Warn *log.Logger
	Info *log.Logger
	Err  *log.Logger
}

// HashRecord is the leaderboard view of a single hash function
type HashRecord struct {
	ID         uint64    `json:"id"`
	Father     uint64    `json:"father,omitempty"`
	Mother     uint64    `json:"mother,omitempty"`
	Generation int       `json:"generation"`
	A          []float64 `json:"a,omitempty"`
	B          float64   `json:"b"`
	R          float64   `json:"r"`
	Mean       float64   `json:"mean"`
	Std        float64   `json:"std"`
	Tested     bool      `json:"tested"`
	Collisions *float64  `json:"collisions,omitempty"`
	P1         *float64  `json:"p1,omitempty"`
	P2         *float64  `json:"p2,omitempty"`
	Score      *float64  `json:"score,omitempty"`
	Trials     int       `json:"trials,omitempty"`
	EarlyExit  bool      `json:"earlyExit,omitempty"`
}

// ResponseData holds the response data of any handler
type ResponseData struct {
	Results []HashRecord `json:"results,omitempty"`
	Count   int          `json:"count,omitempty"`
	Message string       `json:"message,omitempty"`
}
