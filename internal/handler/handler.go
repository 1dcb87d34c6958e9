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


// Package handler adapts a shipper run to the function invocation contract:
// a status code plus a JSON body.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/logctx"
	"github.com/cardinalhq/auditrunner/internal/shipper"
)

const (
	MessageNoLogs    = "No new logs found."
	MessageCompleted = "Logs downloaded and saved to OBS successfully."
)

// Runner performs one transfer run.
type Runner interface {
	Run(ctx context.Context) shipper.Result
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type successBody struct {
	Message      string                 `json:"message"`
	RunID        string                 `json:"run_id,omitempty"`
	UploadedKeys []auditlog.StorageKey  `json:"uploaded_keys"`
	Skipped      []shipper.SkippedEntry `json:"skipped,omitempty"`
	Failed       []shipper.FailedEntry  `json:"failed,omitempty"`
}

type failureBody struct {
	Message   string `json:"message"`
	RunID     string `json:"run_id,omitempty"`
	ErrorKind string `json:"error_kind"`
}

type Handler struct {
	runner Runner
}

func New(runner Runner) *Handler {
	return &Handler{runner: runner}
}

// Invoke runs once. The event payload is accepted for compatibility with
// function triggers and otherwise ignored.
func (h *Handler) Invoke(ctx context.Context, event json.RawMessage) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			logctx.FromContext(ctx).Error("Recovered from panic in invocation", slog.Any("panic", r))
			resp = failure("", fmt.Sprintf("panic: %v", r), shipper.ErrorKindUnclassified)
		}
	}()

	if len(event) > 0 {
		logctx.FromContext(ctx).Debug("Invocation event ignored", slog.Int("bytes", len(event)))
	}

	return FromResult(h.runner.Run(ctx))
}

// FromResult renders a run result as a Response.
func FromResult(res shipper.Result) Response {
	if res.Outcome == shipper.OutcomeFailed || res.Err != nil {
		if res.Err == nil {
			return failure(res.RunID, "run failed", shipper.ErrorKindUnclassified)
		}
		return failure(res.RunID, res.Err.Error(), res.ErrorKind())
	}

	body := successBody{
		Message:      MessageCompleted,
		RunID:        res.RunID,
		UploadedKeys: res.UploadedKeys,
		Skipped:      res.Skipped,
		Failed:       res.Failed,
	}
	if res.Outcome == shipper.OutcomeNoLogsFound {
		body.Message = MessageNoLogs
	}
	if body.UploadedKeys == nil {
		body.UploadedKeys = []auditlog.StorageKey{}
	}
	return encode(http.StatusOK, body)
}

func failure(runID, message, kind string) Response {
	return encode(http.StatusInternalServerError, failureBody{
		Message:   message,
		RunID:     runID,
		ErrorKind: kind,
	})
}

func encode(status int, body any) Response {
	b, err := json.Marshal(body)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       fmt.Sprintf(`{"message":%q,"error_kind":%q}`, err.Error(), shipper.ErrorKindUnclassified),
		}
	}
	return Response{StatusCode: status, Body: string(b)}
}
