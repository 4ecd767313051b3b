/* SPDX-License-Identifier: Apache-2.0
 *
 * Copyright 2023 Damian Peckett <damian@pecke.tt>.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package directory

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// DefaultTimeout is applied to connections when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Conn is the subset of the LDAP client capability the authenticator relies on.
// It is implemented by *ldap.Conn.
type Conn interface {
	Bind(username, password string) error
	UnauthenticatedBind(username string) error
	WhoAmI(controls []ldap.Control) (*ldap.WhoAmIResult, error)
	Search(searchRequest *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(addRequest *ldap.AddRequest) error
	Del(delRequest *ldap.DelRequest) error
	Modify(modifyRequest *ldap.ModifyRequest) error
	ModifyDN(modifyDNRequest *ldap.ModifyDNRequest) error
	Close() error
}

var _ Conn = &ldap.Conn{}

// Dialer opens a new, unbound connection to the directory at uri.
type Dialer interface {
	Dial(uri string) (Conn, error)
}

// DialerFunc makes it easy to use a func as a Dialer.
type DialerFunc func(uri string) (Conn, error)

func (f DialerFunc) Dial(uri string) (Conn, error) {
	return f(uri)
}

// DialOptions controls how NewDialer connects to the directory.
type DialOptions struct {
	// Timeout is the per request timeout applied to every connection.
	Timeout time.Duration
	// TLSConfig is used for ldaps:// connections and for StartTLS.
	TLSConfig *tls.Config
	// StartTLS upgrades plain ldap:// connections before they are returned.
	StartTLS bool
}

// NewDialer returns a Dialer backed by ldap.DialURL.
func NewDialer(opts DialOptions) Dialer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return DialerFunc(func(uri string) (Conn, error) {
		var dialOpts []ldap.DialOpt
		if opts.TLSConfig != nil {
			dialOpts = append(dialOpts, ldap.DialWithTLSConfig(opts.TLSConfig))
		}

		conn, err := ldap.DialURL(uri, dialOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ldap server: %w", err)
		}

		conn.SetTimeout(timeout)

		if opts.StartTLS && !IsLDAPS(uri) {
			if err := conn.StartTLS(opts.TLSConfig); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("failed to start tls: %w", err)
			}
		}

		return conn, nil
	})
}

// IsLDAPS reports whether uri uses the ldaps scheme.
func IsLDAPS(uri string) bool {
	return strings.HasPrefix(strings.ToLower(uri), "ldaps://")
}
