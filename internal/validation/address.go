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

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// TCPAddressValidator checks a host:port address such as a Redis server
type TCPAddressValidator struct {
	address string
}

var _ Validator = (*TCPAddressValidator)(nil)

// NewTCPAddressValidator creates an instance of TCPAddressValidator
func NewTCPAddressValidator(address string) *TCPAddressValidator {
	return &TCPAddressValidator{address: address}
}

// Validate implements validation.Validator.
func (a *TCPAddressValidator) Validate() error {
	return checkHostPort(strings.TrimSpace(a.address))
}

// URLValidator checks a comma separated list of server URLs, each with
// one of the given schemes and an explicit port, as in
// nats://127.0.0.1:4222,nats://127.0.0.1:4223
type URLValidator struct {
	urls    string
	schemes []string
}

var _ Validator = (*URLValidator)(nil)

// NewURLValidator creates an instance of URLValidator
func NewURLValidator(urls string, schemes ...string) *URLValidator {
	return &URLValidator{urls: urls, schemes: schemes}
}

// Validate implements validation.Validator.
func (u *URLValidator) Validate() error {
	for raw := range strings.SplitSeq(u.urls, ",") {
		raw = strings.TrimSpace(raw)
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid url=(%s): %w", raw, err)
		}

		if !u.allowed(parsed.Scheme) {
			return fmt.Errorf("invalid url=(%s): scheme must be one of %v", raw, u.schemes)
		}

		if err := checkHostPort(parsed.Host); err != nil {
			return fmt.Errorf("invalid url=(%s): %w", raw, err)
		}
	}
	return nil
}

func (u *URLValidator) allowed(scheme string) bool {
	if len(u.schemes) == 0 {
		return scheme != ""
	}

	for _, s := range u.schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

func checkHostPort(address string) error {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", address, err)
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("invalid address=(%s): %w", address, err)
	}

	if host == "" || portNum <= 0 || portNum > 65535 {
		return fmt.Errorf("invalid address=(%s): host and port are required", address)
	}
	return nil
}
