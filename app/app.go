package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	helloMessage = getHelloMessage()
)

// New creates leaderboard server on top of the store
func New(st store.Store, logger *cm.Logger, config Config) *Server {
	if logger == nil {
		logger = cm.NewDiscardLogger()
	}
	if config.MaxTop <= 0 {
		config.MaxTop = defaultTop
	}
	return &Server{
		Store:  st,
		Logger: logger,
		Config: config,
	}
}

// Handler returns the mux with all the routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthCheck)
	mux.HandleFunc("/top", s.TopHandler)
	mux.HandleFunc("/hash", s.HashHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return cm.Decorate(mux, cm.Timer(s.Logger))
}

// HealthCheck just checks that server is up and running;
// also gives back list of available methods
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(helloMessage)
}

func writeResponse(w http.ResponseWriter, status int, resp cm.ResponseData) {
	jsonResp, _ := json.Marshal(resp)
	w.WriteHeader(status)
	w.Write(jsonResp)
}

// TopHandler returns the best scored hash functions
// curl -v http://localhost:8080/top?n=10
func (s *Server) TopHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case "GET":
		n := defaultTop
		if raw := r.URL.Query().Get("n"); len(raw) > 0 {
			parsed, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || parsed == 0 {
				s.Logger.Err.Println("Top: n must be a positive integer")
				writeResponse(w, http.StatusBadRequest, cm.ResponseData{Message: "n must be a positive integer"})
				return
			}
			n = int(parsed)
		}
		if n > s.Config.MaxTop {
			n = s.Config.MaxTop
		}
		hfs, err := s.Store.Top(r.Context(), n)
		if err != nil {
			s.Logger.Err.Println("Top: " + err.Error())
			writeResponse(w, http.StatusInternalServerError, cm.ResponseData{Message: err.Error()})
			return
		}
		writeResponse(w, http.StatusOK, cm.ResponseData{
			Results: ToHashRecords(hfs),
			Count:   len(hfs),
		})
	default:
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(http.StatusText(http.StatusNotImplemented)))
	}
}

// HashHandler returns a single hash function by id
// curl -v http://localhost:8080/hash?id=42
func (s *Server) HashHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case "GET":
		ids, ok := r.URL.Query()["id"]
		if !ok || len(ids) == 0 {
			s.Logger.Err.Println("Get hash: id must be specified")
			writeResponse(w, http.StatusBadRequest, cm.ResponseData{Message: "id must be specified"})
			return
		}
		id, err := strconv.ParseUint(ids[0], 10, 64)
		if err != nil || id == uint64(lsh.NoParent) {
			s.Logger.Err.Println("Get hash: cannot convert id to a positive uint64")
			writeResponse(w, http.StatusBadRequest, cm.ResponseData{Message: "id must be a positive integer"})
			return
		}
		hf, err := s.Store.Get(r.Context(), lsh.ID(id))
		if errors.Is(err, store.ErrNotFound) {
			writeResponse(w, http.StatusNotFound, cm.ResponseData{Message: err.Error()})
			return
		}
		if err != nil {
			s.Logger.Err.Println("Get hash: " + err.Error())
			writeResponse(w, http.StatusInternalServerError, cm.ResponseData{Message: err.Error()})
			return
		}
		writeResponse(w, http.StatusOK, cm.ResponseData{
			Results: []cm.HashRecord{ToHashRecord(hf)},
			Count:   1,
		})
	default:
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(http.StatusText(http.StatusNotImplemented)))
	}
}
