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

package authenticator_test

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/api"
	"github.com/gpu-ninja/ldap-authenticator/internal/authenticator"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	_ api.Authenticator = (*authenticator.Authenticator)(nil)
	_ api.Directory     = (*authenticator.Authenticator)(nil)
)

func TestNew(t *testing.T) {
	t.Run("Named User", func(t *testing.T) {
		dialer := &countingDialer{dialer: newDirectory()}
		a := newAuthenticator(t, dialer, adminRDN)

		assert.Equal(t, "ldap", a.Name())
		assert.Equal(t, "ldap", a.Vendor())
		assert.Equal(t, baseDN, a.BaseDN())
		assert.Equal(t, "cn=admin,dc=example,dc=org", a.UserDN())

		// Nothing is dialed until the first Authenticate.
		assert.Zero(t, dialer.dials)
		assert.False(t, a.IsAuthenticated())
	})

	t.Run("Anonymous", func(t *testing.T) {
		a := newAuthenticator(t, newDirectory(), "")

		assert.Empty(t, a.UserDN())
		assert.True(t, a.IsAuthenticated())

		entries, err := a.Search(authenticator.WithFilter("(uid=alice)"))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Anonymous Server Down", func(t *testing.T) {
		fake := newDirectory()
		fake.SetDown(true)

		_, err := authenticator.New("ldap", "ldap://fake", baseDN, "",
			authenticator.WithDialer(fake),
			authenticator.WithLogger(zaptest.NewLogger(t)))
		assert.ErrorIs(t, err, authenticator.ErrServiceUnavailable)
	})
}

func TestAuthenticate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		a := newAuthenticator(t, newDirectory(), adminRDN)

		require.NoError(t, a.Authenticate(adminPassword))
		assert.True(t, a.IsAuthenticated())
	})

	t.Run("Invalid Password", func(t *testing.T) {
		a := newAuthenticator(t, newDirectory(), adminRDN)

		err := a.Authenticate("wrong")
		require.ErrorIs(t, err, authenticator.ErrAuthentication)
		assert.False(t, a.IsAuthenticated())

		var authErr *authenticator.Error
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, "Invalid password", authErr.Message)
		assert.Equal(t, 13, authErr.Code())
		assert.True(t, ldap.IsErrorWithCode(authErr.Cause, ldap.LDAPResultInvalidCredentials))
	})

	t.Run("Empty Password", func(t *testing.T) {
		a := newAuthenticator(t, newDirectory(), adminRDN)

		assert.ErrorIs(t, a.Authenticate(""), authenticator.ErrAuthentication)
	})

	t.Run("Unknown User", func(t *testing.T) {
		a := newAuthenticator(t, newDirectory(), "cn=nobody")

		assert.ErrorIs(t, a.Authenticate(adminPassword), authenticator.ErrAuthentication)
	})

	t.Run("Server Down", func(t *testing.T) {
		fake := newDirectory()
		fake.SetDown(true)

		a := newAuthenticator(t, fake, adminRDN)

		err := a.Authenticate(adminPassword)
		require.ErrorIs(t, err, authenticator.ErrServiceUnavailable)
		assert.Equal(t, 169, err.(*authenticator.Error).Code())
	})

	t.Run("Server Down Result Codes", func(t *testing.T) {
		for _, code := range []uint16{ldap.ErrorNetwork, ldap.LDAPResultServerDown, ldap.LDAPResultUnavailable, ldap.LDAPResultConnectError} {
			a := newAuthenticator(t, failingDialer(ldap.NewError(code, errors.New("unreachable"))), adminRDN)

			assert.ErrorIs(t, a.Authenticate(adminPassword), authenticator.ErrServiceUnavailable, "code %d", code)
		}
	})

	t.Run("Unexpected Bind Error", func(t *testing.T) {
		a := newAuthenticator(t, failingDialer(ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("unwilling"))), adminRDN)

		err := a.Authenticate(adminPassword)
		require.Error(t, err)

		var authErr *authenticator.Error
		assert.False(t, errors.As(err, &authErr))
		assert.Contains(t, err.Error(), "failed to bind to ldap server")
		assert.True(t, ldap.IsErrorWithCode(errors.Unwrap(err), ldap.LDAPResultUnwillingToPerform))
	})

	t.Run("Replaces Connection", func(t *testing.T) {
		dialer := &countingDialer{dialer: newDirectory()}
		a := newAuthenticator(t, dialer, adminRDN)

		require.NoError(t, a.Authenticate(adminPassword))
		require.NoError(t, a.Authenticate(adminPassword))

		assert.Equal(t, 2, dialer.dials)
		assert.Equal(t, 1, dialer.closes)
		assert.True(t, a.IsAuthenticated())
	})

	t.Run("Failure Clears Connection", func(t *testing.T) {
		dialer := &countingDialer{dialer: newDirectory()}
		a := newAuthenticator(t, dialer, adminRDN)

		require.NoError(t, a.Authenticate(adminPassword))
		require.Error(t, a.Authenticate("wrong"))

		// Both the rejected connection and the previous one are released.
		assert.Equal(t, 2, dialer.closes)
		assert.False(t, a.IsAuthenticated())

		_, err := a.Search()
		assert.ErrorIs(t, err, authenticator.ErrNotConnected)
	})
}

func TestIsAuthenticated(t *testing.T) {
	t.Run("Server Down", func(t *testing.T) {
		fake := newDirectory()
		a := newAdmin(t, fake)

		fake.SetDown(true)
		assert.False(t, a.IsAuthenticated())

		fake.SetDown(false)
		assert.True(t, a.IsAuthenticated())
	})

	t.Run("Different Identity", func(t *testing.T) {
		fake := newDirectory()
		fake.Seed("cn=reader,"+baseDN, map[string][]string{
			"cn":           {"reader"},
			"userPassword": {"reader"},
		})

		dialer := directory.DialerFunc(func(uri string) (directory.Conn, error) {
			conn, err := fake.Dial(uri)
			if err != nil {
				return nil, err
			}

			// Simulate a proxy that binds as another identity.
			return &rebindingConn{Conn: conn, dn: "cn=reader," + baseDN, password: "reader"}, nil
		})

		a := newAuthenticator(t, dialer, adminRDN)
		require.NoError(t, a.Authenticate(adminPassword))
		assert.False(t, a.IsAuthenticated())
	})

	t.Run("Close Error", func(t *testing.T) {
		dialer := &countingDialer{dialer: newDirectory(), closeErr: errors.New("connection reset")}
		a := newAuthenticator(t, dialer, adminRDN)
		require.NoError(t, a.Authenticate(adminPassword))

		assert.EqualError(t, a.Close(), "connection reset")
		assert.False(t, a.IsAuthenticated())
		assert.NoError(t, a.Close())
	})

	t.Run("Replace With Close Error", func(t *testing.T) {
		dialer := &countingDialer{dialer: newDirectory(), closeErr: errors.New("connection reset")}
		a := newAuthenticator(t, dialer, adminRDN)

		require.NoError(t, a.Authenticate(adminPassword))
		require.NoError(t, a.Authenticate(adminPassword))

		assert.Equal(t, 1, dialer.closes)
		assert.True(t, a.IsAuthenticated())
	})

	t.Run("After Close", func(t *testing.T) {
		a := newAdmin(t, newDirectory())

		require.NoError(t, a.Close())
		require.NoError(t, a.Close())
		assert.False(t, a.IsAuthenticated())
	})
}

type rebindingConn struct {
	directory.Conn
	dn       string
	password string
}

func (c *rebindingConn) Bind(_, _ string) error {
	return c.Conn.Bind(c.dn, c.password)
}
