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
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds the memory a single compressed payload may expand to
const maxDecodedSize = 64 << 20

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})

	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecodedSize))
	})
)

// Zstd compresses the output of another codec with zstd. It pays off for
// large payloads, which otherwise count against the value size limit of
// the store.
//
// A nil Codec defaults to CBOR.
type Zstd[T any] struct {
	Codec Codec[T]
}

var _ Codec[any] = Zstd[any]{}

// Encode encodes value with the inner codec and compresses the result
func (z Zstd[T]) Encode(value T) ([]byte, error) {
	raw, err := z.inner().Encode(value)
	if err != nil {
		return nil, err
	}

	encoder, err := zstdEncoder()
	if err != nil {
		return nil, fmt.Errorf("chain: zstd encoder: %w", err)
	}
	return encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode decompresses data and decodes it with the inner codec
func (z Zstd[T]) Decode(data []byte) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, errors.New("chain: empty zstd payload")
	}

	decoder, err := zstdDecoder()
	if err != nil {
		return zero, fmt.Errorf("chain: zstd decoder: %w", err)
	}

	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return zero, err
	}
	return z.inner().Decode(raw)
}

func (z Zstd[T]) inner() Codec[T] {
	if z.Codec == nil {
		return CBOR[T]{}
	}
	return z.Codec
}
