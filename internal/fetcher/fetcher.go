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

// Package fetcher downloads audit log files from presigned URLs.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/auditrunner/internal/logctx"
	"github.com/cardinalhq/auditrunner/internal/retry"
)

var (
	fetchCount  metric.Int64Counter
	fetchErrors metric.Int64Counter
	fetchBytes  metric.Int64Counter

	tracer = otel.Tracer("github.com/cardinalhq/auditrunner/internal/fetcher")
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/auditrunner/internal/fetcher")

	var err error
	fetchCount, err = meter.Int64Counter(
		"auditrunner.fetch.count",
		metric.WithDescription("Number of audit log files downloaded"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.count counter: %w", err))
	}

	fetchErrors, err = meter.Int64Counter(
		"auditrunner.fetch.errors",
		metric.WithDescription("Number of failed audit log downloads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.errors counter: %w", err))
	}

	fetchBytes, err = meter.Int64Counter(
		"auditrunner.fetch.bytes",
		metric.WithDescription("Bytes downloaded from audit log links"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fetch.bytes counter: %w", err))
	}
}

// Error is a failed download: either a non-2xx response or a transport
// failure, in which case StatusCode is zero.
type Error struct {
	URL        string
	StatusCode int
	Status     string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: HTTP %s", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt might succeed. 4xx responses
// other than 408 and 429 are final.
func Retryable(err error) bool {
	var fe *Error
	if !errors.As(err, &fe) {
		return false
	}
	if fe.StatusCode == 0 {
		return !errors.Is(fe.Err, context.Canceled)
	}
	switch {
	case fe.StatusCode == http.StatusRequestTimeout, fe.StatusCode == http.StatusTooManyRequests:
		return true
	case fe.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// Fetcher performs unauthenticated GETs and buffers the whole body.
type Fetcher struct {
	client *http.Client
	policy retry.Policy
}

type Option func(*Fetcher)

// WithTimeout bounds each request. Zero, the default, means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = otelhttp.NewTransport(rt)
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(f *Fetcher) {
		f.policy = p
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy: retry.None,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.policy = f.policy.WithRetryable(Retryable)
	return f
}

// Fetch downloads rawURL. The presigned query string is never logged or
// included in errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	safe := RedactURL(rawURL)

	ctx, span := tracer.Start(ctx, "fetcher.Fetch", trace.WithAttributes(
		attribute.String("url", safe),
	))
	defer span.End()

	body, err := retry.Do(ctx, f.policy, "fetch", func(ctx context.Context) ([]byte, error) {
		return f.fetchOnce(ctx, rawURL, safe)
	})
	if err != nil {
		span.RecordError(err)
		reason := "transport"
		var fe *Error
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			reason = "status"
		}
		fetchErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		return nil, err
	}

	fetchCount.Add(ctx, 1)
	fetchBytes.Add(ctx, int64(len(body)))
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, safe string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: safe, Err: err}
	}

	logctx.FromContext(ctx).Debug("Downloading audit log", slog.String("url", safe))

	resp, err := f.client.Do(req)
	if err != nil {
		// The client error embeds the full URL.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, &Error{URL: safe, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{URL: safe, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: safe, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// RedactURL drops the query and fragment, which carry the link's signature.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<unparsable url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
