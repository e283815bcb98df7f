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

package chain

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/tochemey/sharedchain/internal/codec"
)

// Codec turns node payloads into bytes and back.
// Every handle of a chain must use the same codec.
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// CBOR encodes payloads with deterministic CBOR. It is the default codec.
type CBOR[T any] struct{}

var _ Codec[any] = CBOR[any]{}

// Encode encodes value
func (CBOR[T]) Encode(value T) ([]byte, error) {
	return codec.Marshal(value)
}

// Decode decodes data
func (CBOR[T]) Decode(data []byte) (T, error) {
	var value T
	err := codec.Unmarshal(data, &value)
	return value, err
}

// JSON encodes payloads as JSON
type JSON[T any] struct{}

var (
	_    Codec[any] = JSON[any]{}
	json            = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Encode encodes value
func (JSON[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

// Decode decodes data
func (JSON[T]) Decode(data []byte) (T, error) {
	var value T
	err := json.Unmarshal(data, &value)
	return value, err
}
