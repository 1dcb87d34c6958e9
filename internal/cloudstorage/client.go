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
)

// Client writes audit log objects. Writes are unconditional: an existing
// object at the same key is replaced.
type Client interface {
	PutObject(ctx context.Context, bucket, key string, content []byte) error
}

const (
	BackendOBS  = "obs"
	BackendFile = "file"
)

// Profile describes where objects are written.
type Profile struct {
	Backend      string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
	InsecureTLS  bool
	// FileRoot is the base directory for the file backend.
	FileRoot string
}

func NewClient(ctx context.Context, profile Profile) (Client, error) {
	switch profile.Backend {
	case BackendOBS, "":
		mgr, err := newAWSManager(ctx, profile)
		if err != nil {
			return nil, err
		}
		return newS3ClientForProfile(ctx, mgr, profile)
	case BackendFile:
		if profile.FileRoot == "" {
			return nil, fmt.Errorf("file storage backend requires a root directory")
		}
		return NewFileClient(profile.FileRoot), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", profile.Backend)
	}
}
