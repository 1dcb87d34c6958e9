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


// Package idgen generates instance and run identifiers.
package idgen

import (
	"errors"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/sony/sonyflake"
)

var DefaultFlakeGenerator *SonyFlakeGenerator

func init() {
	var err error
	DefaultFlakeGenerator, err = newFlakeGenerator()
	if err != nil {
		panic(err)
	}
}

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

var flakeEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// newFlakeGenerator derives the machine id from the private IP address and
// falls back to the process id on hosts without one, such as function
// sandboxes.
func newFlakeGenerator() (*SonyFlakeGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeEpoch})
	if err != nil || sf == nil {
		sf, err = sonyflake.New(sonyflake.Settings{
			StartTime: flakeEpoch,
			MachineID: func() (uint16, error) { return uint16(os.Getpid()), nil },
		})
	}
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

func (g *SonyFlakeGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextRunID returns a short, time-ordered identifier for one run.
func (g *SonyFlakeGenerator) NextRunID() string {
	return strconv.FormatInt(g.NextID(), 36)
}
