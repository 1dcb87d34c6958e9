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

import "time"

// WireTimeFormat is the timestamp layout the RDS audit log API accepts and
// returns, e.g. "2025-11-06T09:03:34+0800".
const WireTimeFormat = "2006-01-02T15:04:05-0700"

// DefaultLookback is how far back a run looks for new audit logs.
const DefaultLookback = 24 * time.Hour

// TimeWindow is the [Start, End) interval a run queries.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow returns the window ending at now and starting lookback
// earlier. Both bounds are in UTC. A non-positive lookback uses DefaultLookback.
func NewTimeWindow(now time.Time, lookback time.Duration) TimeWindow {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	end := now.UTC()
	return TimeWindow{
		Start: end.Add(-lookback),
		End:   end,
	}
}

func (w TimeWindow) FormatStart() string {
	return w.Start.Format(WireTimeFormat)
}

func (w TimeWindow) FormatEnd() string {
	return w.End.Format(WireTimeFormat)
}
