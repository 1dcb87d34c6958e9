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


package cloudstorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/awsclient"
)

var (
	uploadErrors metric.Int64Counter
	uploadCount  metric.Int64Counter
	uploadBytes  metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/auditrunner/internal/cloudstorage")

	var err error
	uploadErrors, err = meter.Int64Counter(
		"auditrunner.obs.upload.errors",
		metric.WithDescription("Number of object storage upload errors"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.errors counter: %w", err))
	}

	uploadCount, err = meter.Int64Counter(
		"auditrunner.obs.upload.count",
		metric.WithDescription("Number of object storage uploads"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.count counter: %w", err))
	}

	uploadBytes, err = meter.Int64Counter(
		"auditrunner.obs.upload.bytes",
		metric.WithDescription("Bytes uploaded to object storage"),
		metric.WithUnit("By"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.bytes counter: %w", err))
	}
}

func contentTypeFor(key string) string {
	switch path.Ext(key) {
	case ".gz":
		return "application/gzip"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func putS3Object(ctx context.Context, s3client *awsclient.S3Client, bucketID, objectID string, content []byte) error {
	uploader := manager.NewUploader(s3client.Client)

	var span trace.Span
	ctx, span = s3client.Tracer.Start(ctx, "cloudstorage.putS3Object",
		trace.WithAttributes(
			attribute.String("bucketID", bucketID),
			attribute.String("objectID", objectID),
			attribute.Int("size", len(content)),
		),
	)
	defer span.End()

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucketID),
		Key:           aws.String(objectID),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentTypeFor(objectID)),
		Metadata: map[string]string{
			"writer": "auditrunner-go",
		},
	})
	if err != nil {
		span.RecordError(err)
		uploadErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("bucket", bucketID),
		))
		return classifyS3Error("PutObject", err)
	}

	uploadCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("bucket", bucketID),
	))
	uploadBytes.Add(ctx, int64(len(content)), metric.WithAttributes(
		attribute.String("bucket", bucketID),
	))

	return nil
}

// classifyS3Error turns an SDK error into an *auditlog.APIError. A zero
// StatusCode means no response was received.
func classifyS3Error(op string, err error) error {
	apiErr := &auditlog.APIError{Service: "obs", Operation: op, Err: err}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		apiErr.StatusCode = re.HTTPStatusCode()
		apiErr.RequestID = re.ServiceRequestID()
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		apiErr.Code = ae.ErrorCode()
		apiErr.Message = ae.ErrorMessage()
	}
	return apiErr
}

// Retryable reports whether an upload error is worth another attempt.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *auditlog.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch {
	case apiErr.StatusCode == 0:
		return true
	case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode == http.StatusTooManyRequests:
		return true
	case apiErr.StatusCode >= 500:
		return true
	default:
		return false
	}
}
