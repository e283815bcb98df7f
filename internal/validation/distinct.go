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

package validation

import "fmt"

// DistinctValidator rejects named values that are equal to one another.
// Key spaces sharing a prefix would let pointer, data and extra entries
// overwrite each other.
type DistinctValidator struct {
	names  []string
	values []string
}

var _ Validator = (*DistinctValidator)(nil)

// NewDistinctValidator creates an empty DistinctValidator
func NewDistinctValidator() *DistinctValidator {
	return &DistinctValidator{}
}

// Add registers a named value
func (d *DistinctValidator) Add(name, value string) *DistinctValidator {
	d.names = append(d.names, name)
	d.values = append(d.values, value)
	return d
}

// Validate executes the validation
func (d *DistinctValidator) Validate() error {
	seen := make(map[string]string, len(d.values))
	for i, value := range d.values {
		if other, ok := seen[value]; ok {
			return fmt.Errorf("the [%s] and [%s] must differ, both are %q", other, d.names[i], value)
		}
		seen[value] = d.names[i]
	}
	return nil
}
