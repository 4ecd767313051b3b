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
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/internal/authenticator"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	baseDN        = "dc=example,dc=org"
	adminRDN      = "cn=admin"
	adminPassword = "secret"
)

func newDirectory() *directory.Fake {
	fake := directory.NewFake()
	fake.Seed(baseDN, map[string][]string{
		"objectClass": {"top", "dcObject", "organization"},
		"dc":          {"example"},
		"o":           {"Example"},
	})
	fake.Seed(adminRDN+","+baseDN, map[string][]string{
		"objectClass":  {"organizationalRole", "simpleSecurityObject"},
		"cn":           {"admin"},
		"userPassword": {adminPassword},
	})
	fake.Seed("ou=users,"+baseDN, map[string][]string{
		"objectClass": {"organizationalUnit"},
		"ou":          {"users"},
	})
	fake.Seed("uid=alice,ou=users,"+baseDN, map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {"alice"},
		"cn":          {"Alice Liddell"},
		"sn":          {"Liddell"},
		"mail":        {"alice@example.org"},
	})
	fake.Seed("uid=bob,ou=users,"+baseDN, map[string][]string{
		"objectClass": {"inetOrgPerson"},
		"uid":         {"bob"},
		"cn":          {"Bob Dobbs"},
		"sn":          {"Dobbs"},
		"mail":        {"bob@example.org"},
	})

	return fake
}

func newAuthenticator(t *testing.T, dialer directory.Dialer, userRDN string) *authenticator.Authenticator {
	a, err := authenticator.New("ldap", "ldap://fake", baseDN, userRDN,
		authenticator.WithDialer(dialer),
		authenticator.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = a.Close()
	})

	return a
}

// newAdmin returns an authenticator bound as the directory administrator.
func newAdmin(t *testing.T, fake *directory.Fake) *authenticator.Authenticator {
	a := newAuthenticator(t, fake, adminRDN)
	require.NoError(t, a.Authenticate(adminPassword))

	return a
}

// countingDialer wraps the connections of a dialer and counts the calls the
// authenticator makes on them.
type countingDialer struct {
	dialer   directory.Dialer
	dials    int
	closes   int
	modifies int
	closeErr error
}

func (d *countingDialer) Dial(uri string) (directory.Conn, error) {
	d.dials++

	conn, err := d.dialer.Dial(uri)
	if err != nil {
		return nil, err
	}

	return &countingConn{Conn: conn, dialer: d}, nil
}

type countingConn struct {
	directory.Conn
	dialer *countingDialer
}

func (c *countingConn) Modify(req *ldap.ModifyRequest) error {
	c.dialer.modifies++
	return c.Conn.Modify(req)
}

func (c *countingConn) Close() error {
	c.dialer.closes++
	if err := c.Conn.Close(); err != nil {
		return err
	}

	return c.dialer.closeErr
}

// failingConn fails every bind with err.
type failingConn struct {
	directory.Conn
	err error
}

func (c *failingConn) Bind(_, _ string) error {
	return c.err
}

func (c *failingConn) UnauthenticatedBind(_ string) error {
	return c.err
}

func (c *failingConn) Close() error {
	return nil
}

func failingDialer(err error) directory.Dialer {
	return directory.DialerFunc(func(_ string) (directory.Conn, error) {
		return &failingConn{err: err}, nil
	})
}
