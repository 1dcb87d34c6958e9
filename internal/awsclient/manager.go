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

package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager holds the base SDK configuration shared by every S3 client built
// during a run.
type Manager struct {
	baseCfg aws.Config
	tracer  trace.Tracer
}

type managerConfig struct {
	loadOpts []func(*config.LoadOptions) error
}

type ManagerOption func(*managerConfig)

// WithStaticCredentials signs requests with a fixed access key pair, as
// Huawei OBS expects, instead of the default AWS credential chain.
func WithStaticCredentials(accessKey, secretKey string) ManagerOption {
	return func(c *managerConfig) {
		c.loadOpts = append(c.loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}
}

func WithDefaultRegion(region string) ManagerOption {
	return func(c *managerConfig) {
		c.loadOpts = append(c.loadOpts, config.WithRegion(region))
	}
}

func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	var mc managerConfig
	for _, opt := range opts {
		opt(&mc)
	}

	cfg, err := config.LoadDefaultConfig(ctx, mc.loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	return &Manager{
		baseCfg: cfg,
		tracer:  otel.Tracer("github.com/cardinalhq/auditrunner/internal/awsclient"),
	}, nil
}
