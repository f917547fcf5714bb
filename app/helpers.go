package app

import (
	"encoding/json"

	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/lsh"
)

// getHelloMessage forms a byte array contains message
func getHelloMessage() []byte {
	helloMessage := []byte(`{
		"methods": {
			"GET": {
				"/": "health check, lists available methods",
				"/top?n=50": "returns the best scored hash functions",
				"/hash?id=1": "returns a single hash function with its lineage",
				"/metrics": "prometheus metrics"
			}
		}
	}`)
	var raw map[string]interface{}
	err := json.Unmarshal(helloMessage, &raw)
	if err != nil {
		return []byte("")
	}
	out, _ := json.Marshal(raw)
	return out
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// ToHashRecord converts hash function into its leaderboard view
func ToHashRecord(hf lsh.HashFunction) cm.HashRecord {
	rec := cm.HashRecord{
		ID:         uint64(hf.ID),
		Father:     uint64(hf.Father),
		Mother:     uint64(hf.Mother),
		Generation: hf.Generation,
	}
	if p, ok := hf.Params(); ok {
		rec.A = p.A
		rec.B = p.B
		rec.R = p.R
		rec.Mean = p.Mean
		rec.Std = p.Std
	}
	f := hf.Fitness()
	if !f.IsTested() {
		return rec
	}
	rec.Tested = true
	rec.Collisions = optional(f.Collisions())
	if p1, p2, ok := f.NearFar(); ok {
		rec.P1, rec.P2 = &p1, &p2
	}
	rec.Score = optional(f.Score())
	rec.Trials = f.Trials()
	rec.EarlyExit = f.EarlyExit()
	return rec
}

// ToHashRecords converts a ranked list keeping its order
func ToHashRecords(hfs []lsh.HashFunction) []cm.HashRecord {
	out := make([]cm.HashRecord, len(hfs))
	for i, hf := range hfs {
		out[i] = ToHashRecord(hf)
	}
	return out
}
