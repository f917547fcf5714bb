package app

import (
	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/store"
)

const defaultTop = 50

// Config holds the leaderboard constants
type Config struct {
	MaxTop int
}

// Server exposes the hash functions population over http
type Server struct {
	Store  store.Store
	Logger *cm.Logger
	Config Config
}
