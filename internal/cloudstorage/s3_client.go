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
	"context"
	"fmt"

	"github.com/cardinalhq/auditrunner/internal/awsclient"
	"github.com/cardinalhq/auditrunner/internal/retry"
)

type s3Client struct {
	awsS3Client *awsclient.S3Client
	policy      retry.Policy
}

// WithRetryPolicy returns c with uploads retried under p. Clients that do
// not support retries are returned unchanged.
func WithRetryPolicy(c Client, p retry.Policy) Client {
	if sc, ok := c.(*s3Client); ok {
		cp := *sc
		cp.policy = p.WithRetryable(Retryable)
		return &cp
	}
	return c
}

func newAWSManager(ctx context.Context, profile Profile) (*awsclient.Manager, error) {
	var opts []awsclient.ManagerOption
	if profile.AccessKey != "" {
		opts = append(opts, awsclient.WithStaticCredentials(profile.AccessKey, profile.SecretKey))
	}
	if profile.Region != "" {
		opts = append(opts, awsclient.WithDefaultRegion(profile.Region))
	}
	mgr, err := awsclient.NewManager(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS manager: %w", err)
	}
	return mgr, nil
}

func newS3ClientForProfile(ctx context.Context, mgr *awsclient.Manager, p Profile) (*s3Client, error) {
	opts := []awsclient.S3Option{awsclient.WithS3Compatible()}
	if p.Region != "" {
		opts = append(opts, awsclient.WithRegion(p.Region))
	}
	if p.Endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(p.Endpoint))
	}
	if p.UsePathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if p.InsecureTLS {
		opts = append(opts, awsclient.WithInsecureTLS())
	}
	c, err := mgr.GetS3(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return &s3Client{awsS3Client: c, policy: retry.None}, nil
}

func (c *s3Client) PutObject(ctx context.Context, bucket, key string, content []byte) error {
	_, err := retry.Do(ctx, c.policy, "upload", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, putS3Object(ctx, c.awsS3Client, bucket, key, content)
	})
	return err
}
