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

// Package shipper copies database audit logs from the RDS audit log API
// into date-partitioned object storage.
//
// A run lists the audit logs for a trailing window, then for each entry
// resolves a download link, downloads the file, derives its key and uploads
// it. An entry without a download link is skipped. Any other failure aborts
// the run; objects uploaded before the failure stay in the bucket.
package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/cloudstorage"
	"github.com/cardinalhq/auditrunner/internal/idgen"
	"github.com/cardinalhq/auditrunner/internal/logctx"
)

// Fetcher downloads the content behind a resolved link.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Shipper struct {
	source auditlog.Source
	fetch  Fetcher
	store  cloudstorage.Client
	bucket string

	now              func() time.Time
	lookback         time.Duration
	pageLimit        int
	concurrency      int
	continueOnFailed bool
	nextRunID        func() string
}

type Option func(*Shipper)

// WithClock replaces time.Now for the window and the fallback partition.
func WithClock(now func() time.Time) Option {
	return func(s *Shipper) {
		s.now = now
	}
}

func WithLookback(d time.Duration) Option {
	return func(s *Shipper) {
		s.lookback = d
	}
}

// WithPageLimit sets how many entries a single listing call asks for.
func WithPageLimit(n int) Option {
	return func(s *Shipper) {
		s.pageLimit = n
	}
}

// WithConcurrency processes up to n entries at once. Keys are still
// reported in entry order.
func WithConcurrency(n int) Option {
	return func(s *Shipper) {
		s.concurrency = n
	}
}

// WithContinueOnEntryError records download and upload failures per entry
// instead of aborting the run. Link generation errors still abort.
func WithContinueOnEntryError(enabled bool) Option {
	return func(s *Shipper) {
		s.continueOnFailed = enabled
	}
}

func WithRunIDs(next func() string) Option {
	return func(s *Shipper) {
		s.nextRunID = next
	}
}

func New(source auditlog.Source, fetch Fetcher, store cloudstorage.Client, bucket string, opts ...Option) *Shipper {
	s := &Shipper{
		source:      source,
		fetch:       fetch,
		store:       store,
		bucket:      bucket,
		now:         time.Now,
		lookback:    auditlog.DefaultLookback,
		pageLimit:   auditlog.MaxPageLimit,
		concurrency: 1,
		nextRunID:   idgen.DefaultFlakeGenerator.NextRunID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pageLimit <= 0 || s.pageLimit > auditlog.MaxPageLimit {
		s.pageLimit = auditlog.MaxPageLimit
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// entryOutcome is the result of one entry's pipeline, stored by index so
// concurrent runs keep input order.
type entryOutcome struct {
	key     *auditlog.StorageKey
	skipped *SkippedEntry
	failed  *FailedEntry
}

// Run performs one pass. It never panics; every failure is reported in
// the returned Result.
func (s *Shipper) Run(ctx context.Context) (result Result) {
	started := time.Now()
	result.RunID = s.nextRunID()
	result.Window = auditlog.NewTimeWindow(s.now(), s.lookback)

	ctx, logger := logctx.With(ctx, slog.String("runID", result.RunID))
	ctx, span := tracer.Start(ctx, "shipper.Run", trace.WithAttributes(
		attribute.String("runID", result.RunID),
		attribute.String("bucket", s.bucket),
	))

	defer func() {
		if r := recover(); r != nil {
			result = s.failed(result, fmt.Errorf("panic during run: %v", r))
		}
		attrs := metric.WithAttributes(attribute.String("outcome", string(result.Outcome)))
		runCounter.Add(ctx, 1, attrs)
		runDuration.Record(ctx, time.Since(started).Seconds(), attrs)
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		span.End()
	}()

	logger.Info("Listing audit logs",
		slog.String("start", result.Window.FormatStart()),
		slog.String("end", result.Window.FormatEnd()),
		slog.Int("limit", s.pageLimit))

	listing, err := s.source.ListAuditLogs(ctx, result.Window, s.pageLimit)
	if err != nil {
		logger.Error("Failed to list audit logs", slog.Any("error", err))
		return s.failed(result, fmt.Errorf("list audit logs: %w", err))
	}

	result.Listed = len(listing.Entries)
	entriesListed.Add(ctx, int64(result.Listed))

	if len(listing.Entries) == 0 {
		logger.Info("No new audit logs found in the time window")
		result.Outcome = OutcomeNoLogsFound
		result.UploadedKeys = []auditlog.StorageKey{}
		return result
	}
	if listing.Total > len(listing.Entries) {
		logger.Warn("More audit logs exist than one listing call returns; the rest are not transferred in this run",
			slog.Int("listed", len(listing.Entries)),
			slog.Int("total", listing.Total))
	}
	logger.Info("Found audit logs", slog.Int("count", len(listing.Entries)))

	outcomes, err := s.processAll(ctx, listing.Entries)
	if err != nil {
		if IsCanceled(err) {
			logger.Warn("Run canceled before all audit logs were transferred", slog.Any("error", err))
		} else {
			logger.Error("Run aborted", slog.Any("error", err), slog.String("errorKind", ClassifyError(err)))
		}
		return s.failed(result, err)
	}

	result.UploadedKeys = make([]auditlog.StorageKey, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.key != nil:
			result.UploadedKeys = append(result.UploadedKeys, *o.key)
		case o.skipped != nil:
			result.Skipped = append(result.Skipped, *o.skipped)
		case o.failed != nil:
			result.Failed = append(result.Failed, *o.failed)
		}
	}
	result.Outcome = OutcomeCompleted

	if len(result.Failed) > 0 {
		logger.Warn("Some audit logs were not transferred",
			slog.Int("failed", len(result.Failed)),
			slog.Any("error", result.FailureSummary()))
	}
	logger.Info("Run completed",
		slog.Int("uploaded", len(result.UploadedKeys)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("elapsed", time.Since(started)))
	return result
}

func (s *Shipper) failed(result Result, err error) Result {
	result.Outcome = OutcomeFailed
	result.Err = err
	// Keys uploaded before the failure are not reported.
	result.UploadedKeys = nil
	result.Skipped = nil
	result.Failed = nil
	return result
}

func (s *Shipper) processAll(ctx context.Context, entries []auditlog.Entry) ([]entryOutcome, error) {
	outcomes := make([]entryOutcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic processing %s: %v", entry.ID, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.processEntry(gctx, entry)
			if err != nil {
				var fatal *abortError
				if !s.continueOnFailed || ctx.Err() != nil || errors.As(err, &fatal) {
					return err
				}
				entriesFailed.Add(gctx, 1)
				logctx.FromContext(ctx).Error("Failed to transfer audit log, continuing",
					slog.String("entryID", entry.ID),
					slog.Any("error", err))
				out = entryOutcome{failed: &FailedEntry{ID: entry.ID, Name: entry.Name, Error: err.Error(), err: err}}
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Shipper) processEntry(ctx context.Context, entry auditlog.Entry) (entryOutcome, error) {
	ctx, logger := logctx.With(ctx, slog.String("entryID", entry.ID))
	ctx, span := tracer.Start(ctx, "shipper.processEntry", trace.WithAttributes(
		attribute.String("entryID", entry.ID),
	))
	defer span.End()

	logger.Info("Processing audit log", slog.String("name", entry.Name))

	res, err := s.source.ResolveDownloadLink(ctx, entry.ID)
	if err != nil {
		span.RecordError(err)
		return entryOutcome{}, &abortError{err: fmt.Errorf("generate download link for %s: %w", entry.ID, err)}
	}
	if res.Skipped() {
		logger.Warn("Could not generate download link, skipping",
			slog.String("name", entry.Name),
			slog.String("reason", res.Reason))
		entriesSkipped.Add(ctx, 1)
		return entryOutcome{skipped: &SkippedEntry{ID: entry.ID, Name: entry.Name, Reason: res.Reason}}, nil
	}

	content, err := s.fetch.Fetch(ctx, res.URL)
	if err != nil {
		span.RecordError(err)
		return entryOutcome{}, fmt.Errorf("fetch audit log %s: %w", entry.ID, err)
	}

	key := auditlog.KeyDeriver{Now: s.now}.Derive(ctx, entry)

	logger.Info("Uploading audit log",
		slog.String("bucket", s.bucket),
		slog.String("key", key.String()),
		slog.Int("bytes", len(content)))
	if err := s.store.PutObject(ctx, s.bucket, key.String(), content); err != nil {
		span.RecordError(err)
		return entryOutcome{}, fmt.Errorf("upload %s: %w", key, err)
	}
	entriesUploaded.Add(ctx, 1)

	return entryOutcome{key: &key}, nil
}

// abortError marks an entry failure that ends the run even when entry
// errors are otherwise recorded and skipped.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }

func (e *abortError) Unwrap() error { return e.err }

// IsCanceled reports whether a run failed because its context ended.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
