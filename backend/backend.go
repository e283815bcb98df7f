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

// Package backend defines the store adapter every shared chain runs on.
//
// A Backend owns one connection to a shared store and exposes the handful of
// primitives the append protocol needs: reading a node, reading a forward
// pointer, probing for an id and atomically extending the tail. All the
// conflict detection lives in Extend, which must commit the tail pointer
// rewrite and the creation of the new node as one conditional write.
package backend

import (
	"context"
	"strings"
)

// KeySpace renders the keys of a chain.
//
//	{ChainPrefix}:{id}     forward pointer (and, in the combined layout, data)
//	{DataPrefix}:{id}      node data in the separate layout
//	{ExtraDataPrefix}:{k}  extra metadata
type KeySpace struct {
	ChainPrefix     string
	DataPrefix      string
	ExtraDataPrefix string
}

// Chain returns the pointer key of id
func (k KeySpace) Chain(id string) string {
	return k.ChainPrefix + ":" + id
}

// Data returns the data key of id
func (k KeySpace) Data(id string) string {
	return k.DataPrefix + ":" + id
}

// Extra returns the extra metadata key of key
func (k KeySpace) Extra(key string) string {
	return k.ExtraDataPrefix + ":" + key
}

// ChainID extracts the node id from a pointer key.
func (k KeySpace) ChainID(key string) (string, bool) {
	prefix := k.ChainPrefix + ":"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return strings.TrimPrefix(key, prefix), true
}

// Record is a node as stored, before the payload is decoded.
type Record struct {
	// ID is the node identifier
	ID string
	// Revision is the backend revision stamp of the pointer key; zero when the
	// backend has no revision concept
	Revision int64
	// Data is the encoded payload; nil when nothing is stored
	Data []byte
	// NextID is the successor id; empty for the tail
	NextID string
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Data != nil {
		clone.Data = append([]byte(nil), r.Data...)
	}
	return &clone
}

// Backend is the store adapter of a shared chain.
//
// Implementations report connection faults as errors. Absent ids and lost
// races are not errors: Load returns a nil record and Extend returns false.
type Backend interface {
	// Head makes sure the head node exists, creating it with an empty pointer
	// when missing, and returns it as stored.
	Head(ctx context.Context, id string) (*Record, error)
	// Load returns the node stored under id, or nil when there is none.
	Load(ctx context.Context, id string) (*Record, error)
	// Pointer reads the forward pointer of id straight from the store.
	// It returns an empty string for the tail or an unknown id.
	Pointer(ctx context.Context, id string) (string, error)
	// Exists reports whether id is on the chain.
	Exists(ctx context.Context, id string) (bool, error)
	// Extend atomically links tail to a new node newID holding data. It commits
	// only when tail is still the tail as last observed and newID is unused.
	// On success it returns the tail as now stored.
	Extend(ctx context.Context, tail *Record, newID string, data []byte) (*Record, bool, error)
	// SaveExtra writes an extra metadata entry unconditionally.
	SaveExtra(ctx context.Context, key string, data []byte) error
	// LoadExtra reads an extra metadata entry; nil when absent.
	LoadExtra(ctx context.Context, key string) ([]byte, error)
	// Close releases the connection owned by the backend.
	Close() error
}
