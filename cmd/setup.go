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
	"fmt"
	"log/slog"

	"github.com/cardinalhq/auditrunner/config"
	"github.com/cardinalhq/auditrunner/internal/cloudstorage"
	"github.com/cardinalhq/auditrunner/internal/fetcher"
	"github.com/cardinalhq/auditrunner/internal/huaweiclient"
	"github.com/cardinalhq/auditrunner/internal/retry"
	"github.com/cardinalhq/auditrunner/internal/shipper"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func storageProfile(cfg *config.Config) cloudstorage.Profile {
	return cloudstorage.Profile{
		Backend:      cfg.Storage.Backend,
		Region:       cfg.RDS.Region,
		Endpoint:     cfg.OBSEndpoint(),
		AccessKey:    cfg.Cloud.AccessKey,
		SecretKey:    cfg.Cloud.SecretKey,
		UsePathStyle: cfg.OBS.UsePathStyle,
		InsecureTLS:  cfg.OBS.InsecureTLS,
		FileRoot:     cfg.Storage.FileRoot,
	}
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}
}

func shipperOptions(cfg *config.Config) []shipper.Option {
	return []shipper.Option{
		shipper.WithLookback(cfg.AuditLog.Lookback),
		shipper.WithPageLimit(cfg.AuditLog.PageLimit),
		shipper.WithConcurrency(cfg.AuditLog.Concurrency),
		shipper.WithContinueOnEntryError(cfg.AuditLog.ContinueOnEntryError),
	}
}

// buildShipper creates the clients once; they are shared by every run.
func buildShipper(ctx context.Context, cfg *config.Config) (*shipper.Shipper, error) {
	rds, err := huaweiclient.NewRDSClient(huaweiclient.Credentials{
		AccessKey: cfg.Cloud.AccessKey,
		SecretKey: cfg.Cloud.SecretKey,
		ProjectID: cfg.Cloud.ProjectID,
	}, cfg.RDS.Region, cfg.RDS.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to create RDS client: %w", err)
	}

	policy := retryPolicy(cfg)
	fetch := fetcher.New(
		fetcher.WithTimeout(cfg.Fetch.Timeout),
		fetcher.WithRetryPolicy(policy),
	)

	profile := storageProfile(cfg)
	store, err := cloudstorage.NewClient(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	store = cloudstorage.WithRetryPolicy(store, policy)

	slog.Info("Clients ready",
		slog.String("instanceID", cfg.RDS.InstanceID),
		slog.String("region", cfg.RDS.Region),
		slog.String("backend", profile.Backend),
		slog.String("endpoint", profile.Endpoint),
		slog.String("bucket", cfg.OBS.Bucket),
		slog.Int("concurrency", cfg.AuditLog.Concurrency),
		slog.Int("retryMaxAttempts", policy.MaxAttempts))

	return shipper.New(rds, fetch, store, cfg.OBS.Bucket, shipperOptions(cfg)...), nil
}
