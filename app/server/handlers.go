package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xrplstats/richlist/pkg/snapshot"
)

// LedgerEntry is one snapshot found in the data directory.
type LedgerEntry struct {
	LedgerIndex uint64 `json:"ledgerIndex"`
	Snapshot    string `json:"snapshot"`
	HasStats    bool   `json:"hasStats"`
}

// NewRouter returns the router with all the API routes.
func (a *App) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", a.HandleHealth).Methods("GET")
	r.HandleFunc("/ledgers", a.HandleLedgers).Methods("GET")
	r.HandleFunc("/ledgers/{index:[0-9]+}/stats", a.HandleLedgerStats).Methods("GET")
	r.HandleFunc("/runs", a.HandleStartRun).Methods("POST")
	r.HandleFunc("/runs/last", a.HandleLastRun).Methods("GET")
	if a.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	return r
}

func (a *App) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if _, err := os.Stat(a.Fetcher.Config.DataDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "errored", "error": "data directory unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleLedgers lists the snapshots in the data directory, newest ledger first.
func (a *App) HandleLedgers(w http.ResponseWriter, _ *http.Request) {
	out, err := a.listLedgers()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleLedgerStats returns the statistics document of one ledger as written to disk.
func (a *App) HandleLedgerStats(w http.ResponseWriter, r *http.Request) {
	index, err := snapshot.ParseIndex(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ledger index"})
		return
	}

	data, err := os.ReadFile(snapshot.StatsPath(snapshot.Path(a.Fetcher.Config.DataDir, index)))
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no statistics for this ledger"})
		return
	case err != nil:
		a.Logger.Error("Reading statistics failed", zap.Uint64("ledger_index", index), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "reading statistics failed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HandleStartRun starts a snapshot run in the background.
func (a *App) HandleStartRun(w http.ResponseWriter, _ *http.Request) {
	if a.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": ErrRunInProgress.Error()})
		return
	}
	go func() {
		// The request context ends with the response; the run must outlive it.
		if _, err := a.RunOnce(context.Background()); err != nil && !errors.Is(err, ErrRunInProgress) {
			a.Logger.Warn("Requested run failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleLastRun returns the outcome of the most recent run.
func (a *App) HandleLastRun(w http.ResponseWriter, _ *http.Request) {
	last := a.LastRun()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no run finished yet"})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (a *App) listLedgers() ([]LedgerEntry, error) {
	dir := a.Fetcher.Config.DataDir
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []LedgerEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	stats := make(map[uint64]bool)
	out := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		index, err := snapshot.ParseIndex(name)
		if err != nil {
			continue
		}
		if snapshot.IsStatsFile(name) {
			stats[index] = true
			continue
		}
		out = append(out, LedgerEntry{LedgerIndex: index, Snapshot: snapshot.Path(dir, index)})
	}
	for i := range out {
		out[i].HasStats = stats[out[i].LedgerIndex]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LedgerIndex > out[j].LedgerIndex })
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
