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
	"os"
	"path/filepath"
	"strings"
)

// FileClient stores objects under base/bucket/key on the local filesystem.
type FileClient struct {
	base string
}

var _ Client = (*FileClient)(nil)

func NewFileClient(base string) *FileClient {
	return &FileClient{base: base}
}

func (c *FileClient) path(bucket, key string) (string, error) {
	p := filepath.Join(c.base, bucket, filepath.FromSlash(key))
	root := filepath.Join(c.base, bucket) + string(filepath.Separator)
	if !strings.HasPrefix(p, root) {
		return "", fmt.Errorf("object key %q escapes bucket %q", key, bucket)
	}
	return p, nil
}

// PutObject writes through a temp file in the destination directory and
// renames it into place, so readers never see a partial object.
func (c *FileClient) PutObject(ctx context.Context, bucket, key string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := c.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename %q -> %q: %w", tmp.Name(), dst, err)
	}
	return nil
}
