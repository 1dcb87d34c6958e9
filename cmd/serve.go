// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.


package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/auditrunner/internal/handler"
	"github.com/cardinalhq/auditrunner/internal/healthcheck"
)

const (
	maxEventBytes = 1 << 20
	idleCondition = "idle"
)

var invokeRejectedCounter metric.Int64Counter

func init() {
	var err error
	invokeRejectedCounter, err = meter.Int64Counter(
		"auditrunner.invoke.rejected",
		metric.WithDescription("Invocations rejected because a run was already in progress"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invoke.rejected counter: %w", err))
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /invoke and health probes; each invoke performs one run",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "auditrunner"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			s, err := buildShipper(doneCtx, cfg)
			if err != nil {
				return err
			}

			healthServer := healthcheck.NewServer(healthcheck.Config{Port: cfg.Health.Port})
			healthServer.Handle("POST /invoke", newInvokeHandler(handler.New(s), healthServer))
			healthServer.SetReady(true)
			healthServer.SetStatus(healthcheck.StatusHealthy)

			return healthServer.Start(doneCtx)
		},
	}

	rootCmd.AddCommand(cmd)
}

type invoker interface {
	Invoke(ctx context.Context, event json.RawMessage) handler.Response
}

// invokeHandler allows one run at a time. Readiness drops while a run is in
// flight so load balancers route elsewhere.
type invokeHandler struct {
	inv    invoker
	health *healthcheck.Server
	busy   atomic.Bool
}

func newInvokeHandler(inv invoker, health *healthcheck.Server) *invokeHandler {
	return &invokeHandler{inv: inv, health: health}
}

func (h *invokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.busy.CompareAndSwap(false, true) {
		invokeRejectedCounter.Add(r.Context(), 1)
		writeJSON(w, http.StatusConflict, `{"message":"a run is already in progress"}`)
		return
	}
	defer h.busy.Store(false)

	if h.health != nil {
		h.health.SetReadyCondition(idleCondition, false)
		defer h.health.SetReadyCondition(idleCondition, true)
	}

	event, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, fmt.Sprintf(`{"message":%q}`, "failed to read event: "+err.Error()))
		return
	}

	resp := h.inv.Invoke(r.Context(), json.RawMessage(event))
	writeJSON(w, resp.StatusCode, resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Error("Failed to write invoke response", slog.Any("error", err))
	}
}
