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
	"errors"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encOpts = cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnixDynamic,
	}
	decOpts = cbor.DecOptions{
		MaxNestedLevels: 64,
		IndefLength:     cbor.IndefLengthForbidden,
		UTF8:            cbor.UTF8RejectInvalid,
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
	}

	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(err)
	}
}

// combinedValue is the value of a chain key in the combined layout: (data, nextID).
type combinedValue struct {
	_      struct{} `cbor:",toarray"`
	Data   []byte
	NextID string
}

// snapshot is the cache representation of a node: (revision, data, nextID).
type snapshot struct {
	_        struct{} `cbor:",toarray"`
	Revision int64
	Data     []byte
	NextID   string
}

// Marshal encodes v with the deterministic CBOR encoding shared by every component.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeCombined encodes the combined layout value of a chain key.
// A nil data is stored as CBOR null.
func EncodeCombined(data []byte, nextID string) ([]byte, error) {
	return encMode.Marshal(combinedValue{Data: data, NextID: nextID})
}

// DecodeCombined decodes a combined layout value. An empty value is a freshly
// created head that was never extended.
func DecodeCombined(value []byte) (data []byte, nextID string, err error) {
	if len(value) == 0 {
		return nil, "", nil
	}

	var decoded combinedValue
	if err := decMode.Unmarshal(value, &decoded); err != nil {
		return nil, "", err
	}
	return decoded.Data, decoded.NextID, nil
}

// EncodeSnapshot encodes the cache representation of a node.
func EncodeSnapshot(revision int64, data []byte, nextID string) ([]byte, error) {
	return encMode.Marshal(snapshot{Revision: revision, Data: data, NextID: nextID})
}

// DecodeSnapshot decodes the cache representation of a node.
func DecodeSnapshot(value []byte) (revision int64, data []byte, nextID string, err error) {
	if len(value) == 0 {
		return 0, nil, "", errors.New("empty snapshot")
	}

	var decoded snapshot
	if err := decMode.Unmarshal(value, &decoded); err != nil {
		return 0, nil, "", err
	}
	return decoded.Revision, decoded.Data, decoded.NextID, nil
}
