package common

import (
	"io"
	"log"
	"net/http"
	"os"
	"time"

	guuid "github.com/google/uuid"
)

// GetNewLogger creates an instance of all needed loggers
func GetNewLogger() *Logger {
	return &Logger{
		Warn: log.New(os.Stderr, "[ Warn ] ", log.LstdFlags|log.Lshortfile),
		Info: log.New(os.Stderr, "[ Info ] ", log.LstdFlags|log.Lshortfile),
		Err:  log.New(os.Stderr, "[ Error ] ", log.LstdFlags|log.Lshortfile),
	}
}

// NewDiscardLogger creates loggers which write nothing; handy in tests
func NewDiscardLogger() *Logger {
	return &Logger{
		Warn: log.New(io.Discard, "", 0),
		Info: log.New(io.Discard, "", 0),
		Err:  log.New(io.Discard, "", 0),
	}
}

// WithPrefix returns a copy of the logger with the extra prefix put
// after the level marker, e.g. the evolution run id
func (l *Logger) WithPrefix(prefix string) *Logger {
	derive := func(src *log.Logger) *log.Logger {
		return log.New(src.Writer(), src.Prefix()+prefix+" ", src.Flags())
	}
	return &Logger{
		Warn: derive(l.Warn),
		Info: derive(l.Info),
		Err:  derive(l.Err),
	}
}

// NewRunID generates unique id of the evolution run
func NewRunID() string {
	return guuid.NewString()
}

// Decorator wraps an http.Handler with additional functionality
type Decorator func(http.Handler) http.Handler

// Decorate handler with all specified decorators
func Decorate(h http.Handler, decorators ...Decorator) http.Handler {
	// apply decorator backwards so that they are executed in declared order
	for i := len(decorators) - 1; i >= 0; i-- {
		h = decorators[i](h)
	}
	return h
}

// Timer logs the time taken processing the request
func Timer(logger *Logger) Decorator {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			h.ServeHTTP(w, r)
			elapsed := time.Since(start)
			logger.Info.Printf("Elapsed time: %v (%v)\n", elapsed, r.URL)
		})
	}
}
