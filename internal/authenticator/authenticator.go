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

// Package authenticator verifies credentials against an LDAP directory and
// exposes a handful of directory helpers on the bound connection.
package authenticator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/gpu-ninja/ldap-authenticator/internal/i18n"
	"go.uber.org/zap"
)

// Vendor identifies the kind of backend behind the authenticator.
const Vendor = "ldap"

// Authenticator binds to an LDAP directory, either as a single configured
// identity or anonymously. It holds at most one live connection and is not
// safe for concurrent use.
type Authenticator struct {
	name   string
	uri    string
	baseDN string
	userDN string

	conn       directory.Conn
	dialer     directory.Dialer
	translator i18n.Translator
	logger     *zap.Logger
}

// Option customizes an Authenticator.
type Option func(a *Authenticator)

// WithDialer sets how connections to the directory are opened.
func WithDialer(dialer directory.Dialer) Option {
	return func(a *Authenticator) {
		a.dialer = dialer
	}
}

// WithTranslator sets the translator used to render error messages.
func WithTranslator(translator i18n.Translator) Option {
	return func(a *Authenticator) {
		a.translator = translator
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// New returns an authenticator for the directory at uri. When userRDN is
// empty the authenticator works anonymously and binds straight away, any
// bind error is returned. Otherwise the bind identity is userRDN under
// baseDN and no connection is opened until Authenticate is called.
func New(name, uri, baseDN, userRDN string, opts ...Option) (*Authenticator, error) {
	a := &Authenticator{
		name:   name,
		uri:    uri,
		baseDN: baseDN,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.dialer == nil {
		a.dialer = directory.NewDialer(directory.DialOptions{})
	}

	if a.translator == nil {
		a.translator = i18n.Default()
	}

	if a.logger == nil {
		a.logger = zap.NewNop()
	}

	a.logger = a.logger.With(zap.String("authenticator", name))

	if userRDN == "" {
		if err := a.Authenticate(""); err != nil {
			return nil, err
		}

		return a, nil
	}

	a.userDN = a.qualify(userRDN)

	return a, nil
}

// Name returns the configured authenticator name.
func (a *Authenticator) Name() string {
	return a.name
}

// Vendor returns "ldap".
func (a *Authenticator) Vendor() string {
	return Vendor
}

// BaseDN returns the root of every directory operation.
func (a *Authenticator) BaseDN() string {
	return a.baseDN
}

// UserDN returns the bind identity, or the empty string in anonymous mode.
func (a *Authenticator) UserDN() string {
	return a.userDN
}

// Authenticate opens a fresh connection and binds with password, or
// anonymously when no user is configured. On success the new connection
// replaces the previous one. On failure the authenticator is left without
// a connection.
func (a *Authenticator) Authenticate(password string) error {
	logger := a.logger.With(zap.String("uri", a.uri), zap.String("dn", a.userDN))

	conn, err := a.dialer.Dial(a.uri)
	if err != nil {
		logger.Warn("Failed to connect to ldap server", zap.Error(err))
		a.reset()

		return newError(a.translator, KindServiceUnavailable, i18n.KeyServerDown, err)
	}

	if a.userDN == "" {
		err = conn.UnauthenticatedBind("")
	} else {
		err = conn.Bind(a.userDN, password)
	}
	if err != nil {
		_ = conn.Close()
		a.reset()

		logger.Warn("Failed to bind to ldap server", zap.Error(err))

		return a.bindError(err)
	}

	a.reset()
	a.conn = conn

	logger.Debug("Bound to ldap server")

	return nil
}

// IsAuthenticated reports whether the live connection is still bound as the
// configured identity. Any failure is reported as false.
func (a *Authenticator) IsAuthenticated() bool {
	if a.conn == nil {
		return false
	}

	result, err := a.conn.WhoAmI(nil)
	if err != nil {
		a.logger.Debug("Failed to query bound identity", zap.Error(err))
		return false
	}

	return authzDN(result.AuthzID) == a.userDN
}

// Close releases the live connection, if any. The authenticator is left
// without a connection even when closing fails.
func (a *Authenticator) Close() error {
	if a.conn == nil {
		return nil
	}

	conn := a.conn
	a.conn = nil

	return conn.Close()
}

func (a *Authenticator) reset() {
	if err := a.Close(); err != nil {
		a.logger.Debug("Failed to close connection", zap.Error(err))
	}
}

func (a *Authenticator) bindError(err error) error {
	switch code, _ := resultCode(err); code {
	case ldap.ErrorNetwork, ldap.LDAPResultServerDown, ldap.LDAPResultUnavailable, ldap.LDAPResultConnectError:
		return newError(a.translator, KindServiceUnavailable, i18n.KeyServerDown, err)
	case ldap.LDAPResultInvalidCredentials, ldap.ErrorEmptyPassword:
		return newError(a.translator, KindAuthentication, i18n.KeyInvalidPassword, err)
	default:
		return fmt.Errorf("failed to bind to ldap server: %w", err)
	}
}

func (a *Authenticator) qualify(rdn string) string {
	return rdn + "," + a.baseDN
}

// resultCode extracts the LDAP result code carried by err.
func resultCode(err error) (uint16, bool) {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode, true
	}

	return 0, false
}

// authzDN strips the "dn:" or "u:" prefix of an authorization identity.
func authzDN(authzID string) string {
	for _, prefix := range []string{"dn:", "u:"} {
		if strings.HasPrefix(authzID, prefix) {
			return strings.TrimPrefix(authzID, prefix)
		}
	}

	return authzID
}
