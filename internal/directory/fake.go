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
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-ldap/ldap/v3"
)

// PasswordAttribute holds the credential checked by simple binds against the fake.
const PasswordAttribute = "userPassword"

// Fake is an in-memory directory. It implements Dialer and hands out
// connections that behave like a small LDAP server: binds are checked
// against the userPassword attribute, writes require an authenticated bind,
// and failures carry the result codes a real server would return.
type Fake struct {
	db   sync.Map
	down atomic.Bool
}

// NewFake returns an empty in-memory directory.
func NewFake() *Fake {
	return &Fake{}
}

// SetDown makes the directory unreachable, both for new dials and for
// connections that are already open.
func (f *Fake) SetDown(down bool) {
	f.down.Store(down)
}

// Seed stores an entry without any access or parent checks.
func (f *Fake) Seed(dn string, attributes map[string][]string) {
	r := &record{dn: dn}
	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r.set(name, attributes[name])
	}

	f.db.Store(normalizeDN(dn), r)
}

// Entry returns a copy of the entry stored at dn.
func (f *Fake) Entry(dn string) (*ldap.Entry, bool) {
	r, ok := f.load(dn)
	if !ok {
		return nil, false
	}

	return r.toEntry(nil), true
}

func (f *Fake) Dial(_ string) (Conn, error) {
	if f.down.Load() {
		return nil, ldap.NewError(ldap.ErrorNetwork, errors.New("dial tcp: connect: connection refused"))
	}

	return &fakeConn{fake: f}, nil
}

func (f *Fake) load(dn string) (*record, bool) {
	v, ok := f.db.Load(normalizeDN(dn))
	if !ok {
		return nil, false
	}

	return v.(*record), true
}

func (f *Fake) hasChildren(dn string) bool {
	key := normalizeDN(dn)

	var found bool
	f.db.Range(func(k, _ any) bool {
		if parentDN(k.(string)) == key {
			found = true
			return false
		}

		return true
	})

	return found
}

// sorted returns all records ordered by dn so search results are stable.
func (f *Fake) sorted() []*record {
	var records []*record
	f.db.Range(func(_, v any) bool {
		records = append(records, v.(*record))
		return true
	})

	sort.Slice(records, func(i, j int) bool {
		return normalizeDN(records[i].dn) < normalizeDN(records[j].dn)
	})

	return records
}

type fakeConn struct {
	fake   *Fake
	closed bool
	bound  bool
	authz  string
}

func (c *fakeConn) Bind(username, password string) error {
	if err := c.check(); err != nil {
		return err
	}

	c.bound, c.authz = false, ""

	if password == "" {
		return ldap.NewError(ldap.ErrorEmptyPassword, errors.New("ldap: empty password not allowed by the client"))
	}

	r, ok := c.fake.load(username)
	if !ok || !containsValue(r.get(PasswordAttribute), password, false) {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))
	}

	c.bound, c.authz = true, r.dn

	return nil
}

func (c *fakeConn) UnauthenticatedBind(username string) error {
	if err := c.check(); err != nil {
		return err
	}

	if username != "" {
		return ldap.NewError(ldap.LDAPResultUnwillingToPerform, errors.New("unauthenticated bind (DN with no password) disallowed"))
	}

	c.bound, c.authz = true, ""

	return nil
}

func (c *fakeConn) WhoAmI(_ []ldap.Control) (*ldap.WhoAmIResult, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	if c.authz == "" {
		return &ldap.WhoAmIResult{}, nil
	}

	return &ldap.WhoAmIResult{AuthzID: "dn:" + c.authz}, nil
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	filter, err := ldap.CompileFilter(req.Filter)
	if err != nil {
		return nil, err
	}

	base := normalizeDN(req.BaseDN)
	if _, ok := c.fake.db.Load(base); !ok {
		return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.BaseDN))
	}

	result := &ldap.SearchResult{}
	for _, r := range c.fake.sorted() {
		if !inScope(normalizeDN(r.dn), base, req.Scope) {
			continue
		}

		matched, err := matchFilter(filter, r)
		if err != nil {
			return nil, ldap.NewError(ldap.ErrorFilterCompile, err)
		}

		if matched {
			result.Entries = append(result.Entries, r.toEntry(req.Attributes))
		}
	}

	return result, nil
}

func (c *fakeConn) Add(req *ldap.AddRequest) error {
	if err := c.checkWrite(); err != nil {
		return err
	}

	if _, ok := c.fake.load(req.DN); ok {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry already exists: %s", req.DN))
	}

	if _, ok := c.fake.load(parentDN(req.DN)); !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("parent does not exist: %s", req.DN))
	}

	r := &record{dn: req.DN}
	for _, attr := range req.Attributes {
		r.set(attr.Type, append(r.get(attr.Type), attr.Vals...))
	}

	c.fake.db.Store(normalizeDN(req.DN), r)

	return nil
}

func (c *fakeConn) Del(req *ldap.DelRequest) error {
	if err := c.checkWrite(); err != nil {
		return err
	}

	if _, ok := c.fake.load(req.DN); !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.DN))
	}

	if c.fake.hasChildren(req.DN) {
		return ldap.NewError(ldap.LDAPResultNotAllowedOnNonLeaf, fmt.Errorf("entry has children: %s", req.DN))
	}

	c.fake.db.Delete(normalizeDN(req.DN))

	return nil
}

func (c *fakeConn) Modify(req *ldap.ModifyRequest) error {
	if err := c.checkWrite(); err != nil {
		return err
	}

	existing, ok := c.fake.load(req.DN)
	if !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.DN))
	}

	r := existing.clone()
	for _, change := range req.Changes {
		name := change.Modification.Type
		values := change.Modification.Vals

		switch change.Operation {
		case ldap.AddAttribute:
			current := r.get(name)
			for _, v := range values {
				if containsValue(current, v, true) {
					return ldap.NewError(ldap.LDAPResultAttributeOrValueExists, fmt.Errorf("%s: value #0 provided more than once", name))
				}
			}
			r.set(name, append(current, values...))
		case ldap.DeleteAttribute:
			current := r.get(name)
			if current == nil {
				return ldap.NewError(ldap.LDAPResultNoSuchAttribute, fmt.Errorf("%s: no such attribute", name))
			}

			if len(values) == 0 {
				r.unset(name)
				continue
			}

			var kept []string
			for _, v := range current {
				if !containsValue(values, v, true) {
					kept = append(kept, v)
				}
			}
			r.set(name, kept)
		case ldap.ReplaceAttribute:
			r.set(name, values)
		default:
			return ldap.NewError(ldap.LDAPResultProtocolError, fmt.Errorf("unknown modify operation %d", change.Operation))
		}
	}

	c.fake.db.Store(normalizeDN(req.DN), r)

	return nil
}

func (c *fakeConn) ModifyDN(req *ldap.ModifyDNRequest) error {
	if err := c.checkWrite(); err != nil {
		return err
	}

	existing, ok := c.fake.load(req.DN)
	if !ok {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object: %s", req.DN))
	}

	if c.fake.hasChildren(req.DN) {
		return ldap.NewError(ldap.LDAPResultNotAllowedOnNonLeaf, fmt.Errorf("entry has children: %s", req.DN))
	}

	parent := req.NewSuperior
	if parent == "" {
		parent = existing.dn[len(firstRDN(existing.dn)):]
		parent = strings.TrimPrefix(parent, ",")
	}

	newDN := req.NewRDN
	if parent != "" {
		newDN += "," + parent
	}

	if _, ok := c.fake.load(newDN); ok {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry already exists: %s", newDN))
	}

	r := existing.clone()
	r.dn = newDN

	if req.DeleteOldRDN {
		name, value := splitRDN(firstRDN(existing.dn))
		var kept []string
		for _, v := range r.get(name) {
			if !strings.EqualFold(v, value) {
				kept = append(kept, v)
			}
		}
		r.set(name, kept)
	}

	name, value := splitRDN(req.NewRDN)
	if current := r.get(name); !containsValue(current, value, true) {
		r.set(name, append(current, value))
	}

	c.fake.db.Delete(normalizeDN(existing.dn))
	c.fake.db.Store(normalizeDN(newDN), r)

	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	c.bound, c.authz = false, ""

	return nil
}

func (c *fakeConn) check() error {
	if c.closed {
		return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection closed"))
	}

	if c.fake.down.Load() {
		return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: server down"))
	}

	return nil
}

func (c *fakeConn) checkWrite() error {
	if err := c.check(); err != nil {
		return err
	}

	if !c.bound || c.authz == "" {
		return ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("no write access to parent"))
	}

	return nil
}

type record struct {
	dn         string
	attributes []*ldap.EntryAttribute
}

func (r *record) get(name string) []string {
	for _, attr := range r.attributes {
		if strings.EqualFold(attr.Name, name) {
			return append([]string(nil), attr.Values...)
		}
	}

	return nil
}

func (r *record) set(name string, values []string) {
	if len(values) == 0 {
		r.unset(name)
		return
	}

	for _, attr := range r.attributes {
		if strings.EqualFold(attr.Name, name) {
			attr.Values = values
			return
		}
	}

	r.attributes = append(r.attributes, &ldap.EntryAttribute{Name: name, Values: values})
}

func (r *record) unset(name string) {
	for i, attr := range r.attributes {
		if strings.EqualFold(attr.Name, name) {
			r.attributes = append(r.attributes[:i], r.attributes[i+1:]...)
			return
		}
	}
}

func (r *record) clone() *record {
	c := &record{dn: r.dn}
	for _, attr := range r.attributes {
		c.attributes = append(c.attributes, &ldap.EntryAttribute{
			Name:   attr.Name,
			Values: append([]string(nil), attr.Values...),
		})
	}

	return c
}

// toEntry projects the record onto the requested attribute list. A nil list
// or "*" selects every attribute.
func (r *record) toEntry(requested []string) *ldap.Entry {
	all := len(requested) == 0 || containsValue(requested, "*", false)

	entry := &ldap.Entry{DN: r.dn}
	for _, attr := range r.attributes {
		if !all && !containsValue(requested, attr.Name, true) {
			continue
		}

		entry.Attributes = append(entry.Attributes, &ldap.EntryAttribute{
			Name:   attr.Name,
			Values: append([]string(nil), attr.Values...),
		})
	}

	return entry
}

func inScope(dn, base string, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return dn == base
	case ldap.ScopeSingleLevel:
		return parentDN(dn) == base
	default:
		return dn == base || base == "" || strings.HasSuffix(dn, ","+base)
	}
}

func containsValue(values []string, v string, foldCase bool) bool {
	for _, candidate := range values {
		if candidate == v || (foldCase && strings.EqualFold(candidate, v)) {
			return true
		}
	}

	return false
}

func normalizeDN(dn string) string {
	parts := strings.Split(dn, ",")
	for i, part := range parts {
		name, value := splitRDN(part)
		parts[i] = strings.ToLower(name) + "=" + strings.ToLower(value)
	}

	if dn == "" {
		return ""
	}

	return strings.Join(parts, ",")
}

func parentDN(dn string) string {
	i := strings.Index(dn, ",")
	if i < 0 {
		return ""
	}

	return normalizeDN(dn[i+1:])
}

func firstRDN(dn string) string {
	if i := strings.Index(dn, ","); i >= 0 {
		return dn[:i]
	}

	return dn
}

func splitRDN(rdn string) (string, string) {
	name, value, _ := strings.Cut(rdn, "=")
	return strings.TrimSpace(name), strings.TrimSpace(value)
}
