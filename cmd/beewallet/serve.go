package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/obiverse/beewallet-core/internal/nineerr"
	"github.com/obiverse/beewallet-core/pkg/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local, loopback-only read-only introspection server",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return bootstrap(cmd) },
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Debug.ListenAddr
		if addr == "" {
			addr = "127.0.0.1:9797"
		}
		addr = utils.EnvOrDefault("BEEWALLET_DEBUG_ADDR", addr)
		if !strings.HasPrefix(addr, "127.0.0.1:") && !strings.HasPrefix(addr, "localhost:") {
			logrus.Fatal("debug server must bind to loopback only (127.0.0.1 or localhost)")
		}

		if err := sys.Start(); err != nil {
			return err
		}
		defer sys.Close()

		r := mux.NewRouter()
		r.Use(loggingMiddleware)
		r.HandleFunc("/scroll/{path:.*}", handleScroll).Methods(http.MethodGet)

		logrus.WithField("addr", addr).Info("debug introspection server listening")
		return http.ListenAndServe(addr, r)
	},
}

// RegisterServe adds the serve command to root.
func RegisterServe(root *cobra.Command) { root.AddCommand(serveCmd) }

// handleScroll serves a read-only view over the mount kernel: GET
// /scroll/<path> reads a single scroll, falling back to a directory
// listing when no scroll exists at that exact path. There is no write
// method on this router — the debug server is strictly an introspection
// surface, never a second entry point for mutation (spec.md's "no network
// protocol of its own" non-goal covers RPC/replication, not a local
// loopback read view).
func handleScroll(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimPrefix(mux.Vars(r)["path"], "/")

	sc, ok, err := sys.Kernel().Read(path)
	if err != nil {
		writeError(w, err)
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, sc)
		return
	}

	paths, err := sys.Kernel().List(path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"paths": paths})
}

// loggingMiddleware logs each request's method, URI and duration once the
// handler chain completes.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, nineerr.ErrNotFound) || errors.Is(err, nineerr.ErrInvalidPath) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
