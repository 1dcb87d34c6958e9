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


package idgen

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyFlakeGenerator_NextID(t *testing.T) {
	gen, err := newFlakeGenerator()
	require.NoError(t, err)

	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id)
}

func TestSonyFlakeGenerator_NextRunID(t *testing.T) {
	gen, err := newFlakeGenerator()
	require.NoError(t, err)

	a := gen.NextRunID()
	b := gen.NextRunID()
	assert.NotEqual(t, a, b)

	av, err := strconv.ParseInt(a, 36, 64)
	require.NoError(t, err)
	bv, err := strconv.ParseInt(b, 36, 64)
	require.NoError(t, err)
	assert.Greater(t, bv, av)
}

func TestDefaultFlakeGenerator(t *testing.T) {
	require.NotNil(t, DefaultFlakeGenerator)
	assert.NotEmpty(t, DefaultFlakeGenerator.NextRunID())
}
