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

package shipper

import (
	"errors"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/fetcher"
)

type Outcome string

const (
	OutcomeNoLogsFound Outcome = "NO_LOGS_FOUND"
	OutcomeCompleted   Outcome = "COMPLETED"
	OutcomeFailed      Outcome = "FAILED"
)

// Error kinds reported for failed runs.
const (
	ErrorKindUpstreamAPI  = "upstream_api"
	ErrorKindNetworkFetch = "network_fetch"
	ErrorKindUnclassified = "unclassified"
)

type SkippedEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type FailedEntry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Error string `json:"error"`

	err error
}

// Result summarizes one run. UploadedKeys is in entry order.
type Result struct {
	RunID        string
	Outcome      Outcome
	Window       auditlog.TimeWindow
	Listed       int
	UploadedKeys []auditlog.StorageKey
	Skipped      []SkippedEntry
	Failed       []FailedEntry
	Err          error
}

// StatusCode is 200 for NoLogsFound and Completed, 500 otherwise. There is
// no partial-success code.
func (r Result) StatusCode() int {
	if r.Outcome == OutcomeFailed {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// ErrorKind classifies Err. It is empty when the run did not fail.
func (r Result) ErrorKind() string {
	if r.Err == nil {
		return ""
	}
	return ClassifyError(r.Err)
}

// FailureSummary joins the per-entry failures recorded when entry errors do
// not abort the run.
func (r Result) FailureSummary() error {
	var merr *multierror.Error
	for _, f := range r.Failed {
		merr = multierror.Append(merr, f.err)
	}
	return merr.ErrorOrNil()
}

func ClassifyError(err error) string {
	var apiErr *auditlog.APIError
	if errors.As(err, &apiErr) {
		return ErrorKindUpstreamAPI
	}
	var fe *fetcher.Error
	if errors.As(err, &fe) {
		return ErrorKindNetworkFetch
	}
	return ErrorKindUnclassified
}
