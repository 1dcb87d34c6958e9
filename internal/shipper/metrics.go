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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("github.com/cardinalhq/auditrunner/internal/shipper")

	entriesListed   metric.Int64Counter
	entriesSkipped  metric.Int64Counter
	entriesUploaded metric.Int64Counter
	entriesFailed   metric.Int64Counter
	runCounter      metric.Int64Counter
	runDuration     metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/auditrunner/internal/shipper")

	var err error
	entriesListed, err = meter.Int64Counter(
		"auditrunner.entries.listed",
		metric.WithDescription("Audit log entries returned by the listing call"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create entries.listed counter: %w", err))
	}

	entriesSkipped, err = meter.Int64Counter(
		"auditrunner.entries.skipped",
		metric.WithDescription("Audit log entries skipped because no download link was returned"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create entries.skipped counter: %w", err))
	}

	entriesUploaded, err = meter.Int64Counter(
		"auditrunner.entries.uploaded",
		metric.WithDescription("Audit log entries written to object storage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create entries.uploaded counter: %w", err))
	}

	entriesFailed, err = meter.Int64Counter(
		"auditrunner.entries.failed",
		metric.WithDescription("Audit log entries that failed to download or upload"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create entries.failed counter: %w", err))
	}

	runCounter, err = meter.Int64Counter(
		"auditrunner.runs",
		metric.WithDescription("Completed runs by outcome"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create runs counter: %w", err))
	}

	runDuration, err = meter.Float64Histogram(
		"auditrunner.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of a run in seconds"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create run.duration histogram: %w", err))
	}
}
