package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/gasparian/lsh-evolve-go/annbench"
	"github.com/gasparian/lsh-evolve-go/app"
	"github.com/gasparian/lsh-evolve-go/client"
	cm "github.com/gasparian/lsh-evolve-go/common"
	"github.com/gasparian/lsh-evolve-go/evolve"
	"github.com/gasparian/lsh-evolve-go/fitness"
	"github.com/gasparian/lsh-evolve-go/lsh"
	"github.com/gasparian/lsh-evolve-go/store"
	"github.com/spf13/cobra"
)

var evolveCmd = &cobra.Command{
	Use:   "evolve",
	Short: "Grow and evolve the population of hash functions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, config.Store, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		pts, err := loadPoints(config.Points, logger)
		if err != nil {
			return err
		}
		cache, err := loadNeighbors(ctx, pts, config.Points.Neighbors, config.Evolve.Workers, logger)
		if err != nil {
			return err
		}
		hasher := hasherConfig(config.Hasher)
		evaluator, err := fitness.New(pts, cache, hasher, fitnessConfig(config.Fitness), logger)
		if err != nil {
			return err
		}
		engine, err := evolve.New(st, evaluator, hasher, pts.Dimension(), engineConfig(config), logger)
		if err != nil {
			return err
		}
		bar := pb.New(0)
		bar.SetTemplateString(`{{ "tested:" }} {{ counters . }} {{ speed . }}`)
		bar.Start()
		defer bar.Finish()
		engine.Progress = progressBar{bar}

		logger.Info.Printf("Run %v started", engine.RunID)
		err = engine.Run(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Warn.Println("Evolution interrupted")
			return nil
		}
		return err
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the population leaderboard over http",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, config.Store, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		server := app.New(st, logger, app.Config{MaxTop: config.App.MaxTop})
		srv := &http.Server{
			Addr:    config.App.Address,
			Handler: server.Handler(),
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info.Printf("Leaderboard is listening on %v", config.App.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the best scored hash functions as json",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		n, _ := cmd.Flags().GetInt("n")
		remote, _ := cmd.Flags().GetString("remote")
		var records []cm.HashRecord
		if remote != "" {
			c := client.New(client.Config{ServerAddress: remote, Timeout: config.Store.Timeout})
			var err error
			records, err = c.Top(ctx, n)
			if err != nil {
				return err
			}
		} else {
			st, err := openStore(ctx, config.Store, logger)
			if err != nil {
				return err
			}
			defer st.Close()
			hfs, err := st.Top(ctx, n)
			if err != nil {
				return err
			}
			records = app.ToHashRecords(hfs)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cm.ResponseData{Results: records, Count: len(records)})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the population into a compressed snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		st, err := openStore(ctx, config.Store, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		snap, err := store.Export(ctx, st, cm.NewRunID())
		if err != nil {
			return err
		}
		serialized, err := snap.Dump()
		if err != nil {
			return err
		}
		if err := lsh.DumpBytesToFile(serialized, out); err != nil {
			return err
		}
		logger.Info.Printf("Exported %v hash functions to %v", len(snap.Records), out)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a snapshot into the population store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		in, _ := cmd.Flags().GetString("in")
		serialized, err := lsh.LoadBytesFromFile(in)
		if err != nil {
			return err
		}
		var snap lsh.Snapshot
		if err := snap.Load(serialized); err != nil {
			return err
		}
		st, err := openStore(ctx, config.Store, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := store.Import(ctx, st, snap)
		if err != nil {
			return err
		}
		logger.Info.Printf("Imported %v hash functions of run %v", n, snap.RunID)
		return nil
	},
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure bucket precision and recall of a stored hash function",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, _ := cmd.Flags().GetUint64("id")
		queries, _ := cmd.Flags().GetInt("queries")
		st, err := openStore(ctx, config.Store, logger)
		if err != nil {
			return err
		}
		defer st.Close()
		hf, err := st.Get(ctx, lsh.ID(id))
		if err != nil {
			return err
		}
		pts, err := loadPoints(config.Points, logger)
		if err != nil {
			return err
		}
		cache, err := loadNeighbors(ctx, pts, config.Points.Neighbors, config.Evolve.Workers, logger)
		if err != nil {
			return err
		}
		report, err := annbench.Bench(ctx, pts, cache, &hf, annbench.Config{
			Queries: queries,
			Workers: config.Evolve.Workers,
			Seed:    config.Evolve.Seed,
		})
		if err != nil {
			return fmt.Errorf("bench hash function %d: %w", id, err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	evolveCmd.Flags().String("mode", "", "crossover or mutation")
	evolveCmd.Flags().Int("steps", 0, "stop after that many steps, 0 runs until interrupted")
	evolveCmd.Flags().Uint64("seed", 0, "random seed, 0 draws one")
	serveCmd.Flags().String("addr", "", "listen address")
	topCmd.Flags().Int("n", 50, "number of hash functions")
	topCmd.Flags().String("remote", "", "leaderboard address, e.g. http://localhost:8080")
	exportCmd.Flags().String("out", "population.snap", "snapshot file")
	importCmd.Flags().String("in", "population.snap", "snapshot file")
	benchCmd.Flags().Uint64("id", 1, "hash function id")
	benchCmd.Flags().Int("queries", 1000, "number of sampled queries")
}
