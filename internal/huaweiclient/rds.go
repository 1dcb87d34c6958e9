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

// Package huaweiclient adapts the Huawei Cloud RDS SDK to auditlog.Source.
package huaweiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/sdkerr"
	rds "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/rds/v3"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/rds/v3/model"
	rdsregion "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/rds/v3/region"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/logctx"
)

// auditLogAPI is the subset of the generated RDS client used here.
type auditLogAPI interface {
	ListAuditlogs(request *model.ListAuditlogsRequest) (*model.ListAuditlogsResponse, error)
	ShowAuditlogDownloadLink(request *model.ShowAuditlogDownloadLinkRequest) (*model.ShowAuditlogDownloadLinkResponse, error)
}

type Credentials struct {
	AccessKey string
	SecretKey string
	ProjectID string
}

// RDSClient lists audit logs and generates download links for one instance.
type RDSClient struct {
	api        auditLogAPI
	instanceID string
	tracer     trace.Tracer
}

var _ auditlog.Source = (*RDSClient)(nil)

// NewRDSClient authenticates with AK/SK scoped to the project and region.
func NewRDSClient(creds Credentials, region, instanceID string) (*RDSClient, error) {
	auth, err := basic.NewCredentialsBuilder().
		WithAk(creds.AccessKey).
		WithSk(creds.SecretKey).
		WithProjectId(creds.ProjectID).
		SafeBuild()
	if err != nil {
		return nil, fmt.Errorf("building RDS credentials: %w", err)
	}

	reg, err := rdsregion.SafeValueOf(region)
	if err != nil {
		return nil, fmt.Errorf("unknown RDS region %q: %w", region, err)
	}

	hc, err := rds.RdsClientBuilder().
		WithRegion(reg).
		WithCredential(auth).
		SafeBuild()
	if err != nil {
		return nil, fmt.Errorf("building RDS client: %w", err)
	}

	return newRDSClient(rds.NewRdsClient(hc), instanceID), nil
}

func newRDSClient(api auditLogAPI, instanceID string) *RDSClient {
	return &RDSClient{
		api:        api,
		instanceID: instanceID,
		tracer:     otel.Tracer("github.com/cardinalhq/auditrunner/internal/huaweiclient"),
	}
}

// ListAuditLogs makes a single listing call at offset 0. limit is clamped
// to [1, auditlog.MaxPageLimit]; entries beyond it are not fetched.
func (c *RDSClient) ListAuditLogs(ctx context.Context, window auditlog.TimeWindow, limit int) (auditlog.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return auditlog.ListResult{}, err
	}
	if limit <= 0 || limit > auditlog.MaxPageLimit {
		limit = auditlog.MaxPageLimit
	}

	ctx, span := c.tracer.Start(ctx, "huaweiclient.ListAuditLogs", trace.WithAttributes(
		attribute.String("instanceID", c.instanceID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	req := &model.ListAuditlogsRequest{
		InstanceId: c.instanceID,
		StartTime:  window.FormatStart(),
		EndTime:    window.FormatEnd(),
		Offset:     0,
		Limit:      int32(limit),
	}
	resp, err := c.api.ListAuditlogs(req)
	if err != nil {
		span.RecordError(err)
		return auditlog.ListResult{}, classifyError("ListAuditlogs", err)
	}

	var result auditlog.ListResult
	if resp.Auditlogs != nil {
		result.Entries = make([]auditlog.Entry, 0, len(*resp.Auditlogs))
		for _, al := range *resp.Auditlogs {
			result.Entries = append(result.Entries, entryFromModel(al))
		}
	}
	result.Total = len(result.Entries)
	if resp.TotalRecord != nil && int(*resp.TotalRecord) > result.Total {
		result.Total = int(*resp.TotalRecord)
	}
	span.SetAttributes(attribute.Int("entries", len(result.Entries)), attribute.Int("total", result.Total))
	logctx.FromContext(ctx).DebugContext(ctx, "RDS listed audit logs",
		slog.Int("entries", len(result.Entries)),
		slog.Int("total", result.Total))
	return result, nil
}

// ResolveDownloadLink requests a link for a single entry. An empty link list
// is a skip, not an error.
func (c *RDSClient) ResolveDownloadLink(ctx context.Context, id string) (auditlog.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return auditlog.Resolution{}, err
	}

	ctx, span := c.tracer.Start(ctx, "huaweiclient.ResolveDownloadLink", trace.WithAttributes(
		attribute.String("instanceID", c.instanceID),
		attribute.String("entryID", id),
	))
	defer span.End()

	req := &model.ShowAuditlogDownloadLinkRequest{
		InstanceId: c.instanceID,
		Body: &model.GenerateAuditlogDownloadLinkRequest{
			Ids: []string{id},
		},
	}
	resp, err := c.api.ShowAuditlogDownloadLink(req)
	if err != nil {
		span.RecordError(err)
		return auditlog.Resolution{}, classifyError("ShowAuditlogDownloadLink", err)
	}

	if resp.Links == nil || len(*resp.Links) == 0 || (*resp.Links)[0] == "" {
		logctx.FromContext(ctx).DebugContext(ctx, "RDS returned no download link", slog.String("entryID", id))
		return auditlog.Skip("no download link returned"), nil
	}
	return auditlog.Resolved((*resp.Links)[0]), nil
}

func entryFromModel(al model.Auditlog) auditlog.Entry {
	e := auditlog.Entry{
		ID:        deref(al.Id),
		Name:      deref(al.Name),
		BeginTime: deref(al.BeginTime),
		EndTime:   deref(al.EndTime),
	}
	if al.Size != nil {
		e.Size = *al.Size
	}
	return e
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// classifyError maps SDK response errors to *auditlog.APIError. Other
// errors (timeouts, connection failures) are wrapped unchanged.
func classifyError(op string, err error) error {
	var sre *sdkerr.ServiceResponseError
	if errors.As(err, &sre) {
		return &auditlog.APIError{
			Service:    "rds",
			Operation:  op,
			StatusCode: sre.StatusCode,
			Code:       sre.ErrorCode,
			Message:    sre.ErrorMessage,
			RequestID:  sre.RequestId,
			Err:        err,
		}
	}
	return fmt.Errorf("rds %s: %w", op, err)
}
