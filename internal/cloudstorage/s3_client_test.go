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
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/auditrunner/internal/auditlog"
	"github.com/cardinalhq/auditrunner/internal/retry"
)

// fakeOBS is a minimal in-memory stand-in for the PutObject endpoint.
type fakeOBS struct {
	sync.Mutex
	objects map[string][]byte
	puts    int
	status  int
}

func (f *fakeOBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	f.puts++
	if f.status != 0 {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message><RequestId>req-1</RequestId></Error>`)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.objects[r.URL.Path] = body
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newFakeOBSClient(t *testing.T, fake *fakeOBS) Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), Profile{
		Backend:      BackendOBS,
		Region:       "la-south-2",
		Endpoint:     srv.URL,
		AccessKey:    "test-ak",
		SecretKey:    "test-sk",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return c
}

func TestS3PutObjectOverwrites(t *testing.T) {
	fake := &fakeOBS{objects: map[string][]byte{}}
	client := newFakeOBSClient(t, fake)
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "audit-bucket", "20251106/audit_001.gz", []byte("content")))
	require.NoError(t, client.PutObject(ctx, "audit-bucket", "20251106/audit_001.gz", []byte("content")))

	fake.Lock()
	defer fake.Unlock()
	assert.Equal(t, 2, fake.puts)
	require.Len(t, fake.objects, 1)
	assert.Equal(t, []byte("content"), fake.objects["/audit-bucket/20251106/audit_001.gz"])
}

func TestS3PutObjectClassifiesErrors(t *testing.T) {
	fake := &fakeOBS{objects: map[string][]byte{}, status: http.StatusForbidden}
	client := newFakeOBSClient(t, fake)

	err := client.PutObject(context.Background(), "audit-bucket", "20251106/a.gz", []byte("x"))
	require.Error(t, err)

	var apiErr *auditlog.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "obs", apiErr.Service)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "AccessDenied", apiErr.Code)
	assert.False(t, Retryable(err))
}

func TestS3PutObjectDoesNotRetryForbidden(t *testing.T) {
	fake := &fakeOBS{objects: map[string][]byte{}, status: http.StatusForbidden}
	client := WithRetryPolicy(newFakeOBSClient(t, fake), retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond})

	require.Error(t, client.PutObject(context.Background(), "audit-bucket", "k", []byte("x")))

	fake.Lock()
	defer fake.Unlock()
	assert.Equal(t, 1, fake.puts)
}

func TestRetryableUploadErrors(t *testing.T) {
	assert.True(t, Retryable(&auditlog.APIError{StatusCode: 503}))
	assert.True(t, Retryable(&auditlog.APIError{StatusCode: 429}))
	assert.True(t, Retryable(&auditlog.APIError{}))
	assert.False(t, Retryable(&auditlog.APIError{StatusCode: 404}))
	assert.False(t, Retryable(context.Canceled))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/gzip", contentTypeFor("20251106/audit.gz"))
	assert.Equal(t, "text/plain", contentTypeFor("20251106/audit.log"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("20251106/audit"))
}

func TestWithRetryPolicyLeavesFileClient(t *testing.T) {
	fc := NewFileClient(t.TempDir())
	assert.Same(t, fc, WithRetryPolicy(fc, retry.None))
}
