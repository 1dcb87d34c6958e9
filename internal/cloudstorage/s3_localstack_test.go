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
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/localstack"
	"github.com/stretchr/testify/require"
)

func TestS3PutObjectLocalstack(t *testing.T) {
	if os.Getenv("GNOMOCK_TESTS") != "1" {
		t.Skip("set GNOMOCK_TESTS=1 to run container-backed tests")
	}

	p := localstack.Preset(localstack.WithServices(localstack.S3))
	container, err := gnomock.Start(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gnomock.Stop(container) })

	ctx := context.Background()
	endpoint := fmt.Sprintf("http://%s", container.Address(localstack.APIPort))
	profile := Profile{
		Backend:      BackendOBS,
		Region:       "us-east-1",
		Endpoint:     endpoint,
		AccessKey:    "test",
		SecretKey:    "test",
		UsePathStyle: true,
	}

	mgr, err := newAWSManager(ctx, profile)
	require.NoError(t, err)
	raw, err := newS3ClientForProfile(ctx, mgr, profile)
	require.NoError(t, err)

	_, err = raw.awsS3Client.Client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("audit-logs")})
	require.NoError(t, err)

	client, err := NewClient(ctx, profile)
	require.NoError(t, err)
	require.NoError(t, client.PutObject(ctx, "audit-logs", "20251106/audit_001.gz", []byte("first")))
	require.NoError(t, client.PutObject(ctx, "audit-logs", "20251106/audit_001.gz", []byte("second")))

	out, err := raw.awsS3Client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("audit-logs"),
		Key:    aws.String("20251106/audit_001.gz"),
	})
	require.NoError(t, err)
	defer func() { _ = out.Body.Close() }()
	body, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	require.Equal(t, "second", string(body))
}
