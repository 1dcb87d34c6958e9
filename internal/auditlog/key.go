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

package auditlog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cardinalhq/auditrunner/internal/helpers"
	"github.com/cardinalhq/auditrunner/internal/logctx"
)

// StorageKey is the destination of one audit log in the object store.
type StorageKey struct {
	DatePartition string
	Filename      string
}

func (k StorageKey) String() string {
	return k.DatePartition + "/" + k.Filename
}

func (k StorageKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// KeyDeriver computes storage keys from entry metadata. Now is used for the
// fallback partition and defaults to time.Now.
type KeyDeriver struct {
	Now func() time.Time
}

// Derive never fails. When BeginTime is missing or does not parse, the
// partition is the current UTC date rather than the entry's own date.
func (d KeyDeriver) Derive(ctx context.Context, e Entry) StorageKey {
	partition, err := partitionFromBeginTime(e.BeginTime)
	if err != nil {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		partition = helpers.DatePartition(now())
		logctx.FromContext(ctx).Warn("Cannot derive date partition from begin time, using current date",
			slog.String("entryID", e.ID),
			slog.String("beginTime", e.BeginTime),
			slog.String("partition", partition),
			slog.Any("error", err))
	}

	return StorageKey{
		DatePartition: partition,
		Filename:      baseName(e),
	}
}

type missingBeginTimeError struct{}

func (missingBeginTimeError) Error() string { return "begin time not reported" }

func partitionFromBeginTime(beginTime string) (string, error) {
	if strings.TrimSpace(beginTime) == "" {
		return "", missingBeginTimeError{}
	}
	t, err := time.Parse(WireTimeFormat, beginTime)
	if err != nil {
		// Some responses use a colon in the offset or a Z suffix.
		var rfcErr error
		if t, rfcErr = time.Parse(time.RFC3339, beginTime); rfcErr != nil {
			return "", err
		}
	}
	// The partition follows the date in the entry's own offset.
	return t.Format(helpers.DatePartitionFormat), nil
}

// baseName strips directories from the entry name. An empty result would
// produce a key ending in "/", so the entry ID stands in for it.
func baseName(e Entry) string {
	name := e.Name[strings.LastIndex(e.Name, "/")+1:]
	if name == "" {
		return e.ID
	}
	return name
}
