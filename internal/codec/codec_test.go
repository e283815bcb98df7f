// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombined(t *testing.T) {
	t.Run("With data and successor", func(t *testing.T) {
		data, err := Marshal(map[string]int{"x": 1})
		require.NoError(t, err)

		value, err := EncodeCombined(data, "B")
		require.NoError(t, err)

		decoded, nextID, err := DecodeCombined(value)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
		assert.Equal(t, "B", nextID)

		var payload map[string]int
		require.NoError(t, Unmarshal(decoded, &payload))
		assert.Equal(t, map[string]int{"x": 1}, payload)
	})

	t.Run("With a never extended head", func(t *testing.T) {
		data, nextID, err := DecodeCombined(nil)
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Empty(t, nextID)
	})

	t.Run("With nil data", func(t *testing.T) {
		value, err := EncodeCombined(nil, "A")
		require.NoError(t, err)

		data, nextID, err := DecodeCombined(value)
		require.NoError(t, err)
		assert.Nil(t, data)
		assert.Equal(t, "A", nextID)
	})

	t.Run("With data from another encoding", func(t *testing.T) {
		value, err := EncodeCombined([]byte(`{"x":1}`), "A")
		require.NoError(t, err)

		data, _, err := DecodeCombined(value)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"x":1}`), data)
	})

	t.Run("With a malformed value", func(t *testing.T) {
		_, _, err := DecodeCombined([]byte("not cbor"))
		require.Error(t, err)
	})
}

func TestSnapshot(t *testing.T) {
	t.Run("With every field set", func(t *testing.T) {
		data, err := Marshal("payload")
		require.NoError(t, err)

		value, err := EncodeSnapshot(42, data, "C")
		require.NoError(t, err)

		revision, decoded, nextID, err := DecodeSnapshot(value)
		require.NoError(t, err)
		assert.EqualValues(t, 42, revision)
		assert.Equal(t, data, decoded)
		assert.Equal(t, "C", nextID)
	})

	t.Run("With an empty value", func(t *testing.T) {
		_, _, _, err := DecodeSnapshot(nil)
		require.Error(t, err)
	})

	t.Run("With a two elements array", func(t *testing.T) {
		value, err := Marshal([]any{int64(1), "x"})
		require.NoError(t, err)
		_, _, _, err = DecodeSnapshot(value)
		require.Error(t, err)
	})
}

func TestMarshalIsDeterministic(t *testing.T) {
	first, err := Marshal(map[string]any{"b": 2, "a": 1, "c": []int{3}})
	require.NoError(t, err)
	for range 10 {
		again, err := Marshal(map[string]any{"c": []int{3}, "a": 1, "b": 2})
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}
