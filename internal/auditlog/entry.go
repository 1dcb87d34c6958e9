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

package auditlog

import (
	"context"
	"fmt"
)

// MaxPageLimit is the largest page the audit log listing API accepts.
const MaxPageLimit = 50

// Entry is one audit log file reported by the database service.
type Entry struct {
	ID   string
	Name string
	// BeginTime and EndTime use WireTimeFormat. Empty means the service
	// did not report the value.
	BeginTime string
	EndTime   string
	Size      float64
}

// ListResult is a single page of audit log entries. Total is the number of
// entries the service reports for the window, which may exceed len(Entries).
type ListResult struct {
	Entries []Entry
	Total   int
}

// Source lists audit logs and resolves them to download links.
type Source interface {
	ListAuditLogs(ctx context.Context, window TimeWindow, limit int) (ListResult, error)
	ResolveDownloadLink(ctx context.Context, id string) (Resolution, error)
}

// Resolution is the outcome of asking for an entry's download link. It is
// either resolved to a URL or skipped with a reason. Fatal failures are
// reported as errors alongside a zero Resolution.
type Resolution struct {
	URL    string
	Reason string
}

func Resolved(url string) Resolution {
	return Resolution{URL: url}
}

func Skip(reason string) Resolution {
	if reason == "" {
		reason = "unresolved"
	}
	return Resolution{Reason: reason}
}

func (r Resolution) Skipped() bool {
	return r.URL == ""
}

// APIError is a classified error returned by a cloud service API.
type APIError struct {
	Service    string
	Operation  string
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Service, e.Operation, msg)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s: HTTP %d %s: %s", e.Service, e.Operation, e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Service, e.Operation, e.StatusCode, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
