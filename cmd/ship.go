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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/auditrunner/internal/handler"
)

func init() {
	var event string

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Transfer the audit logs of the trailing window once and exit",
		RunE: func(c *cobra.Command, _ []string) error {
			servicename := "auditrunner-ship"
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

			resp := handler.New(s).Invoke(doneCtx, json.RawMessage(event))
			return writeResponse(c.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "Invocation event payload (JSON), passed through and ignored")

	rootCmd.AddCommand(cmd)
}

// writeResponse prints resp as JSON and turns a failed run into an error so
// the process exits non-zero.
func writeResponse(w io.Writer, resp handler.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("run failed with status %d", resp.StatusCode)
	}
	return nil
}
