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
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerStaticCredentials(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx,
		WithStaticCredentials("obs-ak", "obs-sk"),
		WithDefaultRegion("ap-southeast-1"))
	require.NoError(t, err)

	assert.Equal(t, "ap-southeast-1", mgr.baseCfg.Region)
	creds, err := mgr.baseCfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "obs-ak", creds.AccessKeyID)
	assert.Equal(t, "obs-sk", creds.SecretAccessKey)
	assert.Empty(t, creds.SessionToken)
}

func TestGetS3AppliesOptions(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx,
		WithStaticCredentials("ak", "sk"),
		WithDefaultRegion("ap-southeast-1"))
	require.NoError(t, err)

	c, err := mgr.GetS3(ctx,
		WithRegion("cn-north-4"),
		WithEndpoint("https://obs.cn-north-4.myhuaweicloud.com"),
		WithPathStyle(),
		WithS3Compatible(),
		WithInsecureTLS())
	require.NoError(t, err)
	require.NotNil(t, c.Tracer)

	o := c.Client.Options()
	assert.Equal(t, "cn-north-4", o.Region)
	require.NotNil(t, o.BaseEndpoint)
	assert.Equal(t, "https://obs.cn-north-4.myhuaweicloud.com", *o.BaseEndpoint)
	assert.True(t, o.UsePathStyle)
	assert.Equal(t, aws.RequestChecksumCalculationWhenRequired, o.RequestChecksumCalculation)
	assert.Equal(t, aws.ResponseChecksumValidationWhenRequired, o.ResponseChecksumValidation)

	hc, ok := o.HTTPClient.(*http.Client)
	require.True(t, ok)
	tr, ok := hc.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)

	// The base config is not mutated by per-client options.
	assert.Equal(t, "ap-southeast-1", mgr.baseCfg.Region)
}

func TestGetS3DefaultsToManagerRegion(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(ctx, WithStaticCredentials("ak", "sk"), WithDefaultRegion("af-south-1"))
	require.NoError(t, err)

	c, err := mgr.GetS3(ctx)
	require.NoError(t, err)
	assert.Equal(t, "af-south-1", c.Client.Options().Region)
	assert.False(t, c.Client.Options().UsePathStyle)
}
