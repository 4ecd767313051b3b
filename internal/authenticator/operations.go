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

package authenticator

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/api"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/gpu-ninja/ldap-authenticator/internal/i18n"
	"github.com/gpu-ninja/ldap-authenticator/internal/util"
	"go.uber.org/zap"
)

const (
	defaultFilter = "(objectClass=*)"
	dnAttribute   = "dn"
)

type SearchOption = api.SearchOption

// WithBase sets the entry the search starts from. Defaults to the base dn.
func WithBase(dn string) SearchOption {
	return func(o *api.SearchOptions) {
		o.Base = dn
	}
}

// WithFilter sets the search filter. Defaults to (objectClass=*).
func WithFilter(filter string) SearchOption {
	return func(o *api.SearchOptions) {
		o.Filter = filter
	}
}

// WithAttributes sets the attributes returned for each entry. Defaults to
// the dn only. Including "dn" adds the entry's distinguished name to each
// result.
func WithAttributes(attributes ...string) SearchOption {
	return func(o *api.SearchOptions) {
		o.Attributes = attributes
	}
}

// WithAllAttributes returns every attribute of each entry, without the dn.
func WithAllAttributes() SearchOption {
	return func(o *api.SearchOptions) {
		o.Attributes = nil
	}
}

// Search looks up entries in the subtree below the base.
func (a *Authenticator) Search(opts ...SearchOption) ([]Entry, error) {
	o := api.SearchOptions{
		Base:       a.baseDN,
		Filter:     defaultFilter,
		Attributes: []string{dnAttribute},
	}

	for _, opt := range opts {
		opt(&o)
	}

	conn, err := a.connection()
	if err != nil {
		return nil, err
	}

	searchRequest := ldap.NewSearchRequest(
		o.Base,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		o.Filter,
		o.Attributes,
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		a.logger.Error("Failed to search directory",
			zap.String("base", o.Base), zap.String("filter", o.Filter), zap.Error(err))

		return nil, a.operationError(err)
	}

	withDN := util.ContainsFold(o.Attributes, dnAttribute)

	entries := make([]Entry, 0, len(searchResult.Entries))
	for _, entry := range searchResult.Entries {
		entries = append(entries, toEntry(entry, withDN))
	}

	return entries, nil
}

// Add creates the entry rdn under the base. Attributes without a value are
// skipped.
func (a *Authenticator) Add(rdn string, attrs Attributes) error {
	conn, err := a.connection()
	if err != nil {
		return err
	}

	dn := a.qualify(rdn)
	logger := a.logger.With(zap.String("dn", dn))

	if name, ok := duplicateAttribute(attrs); ok {
		return a.operationError(fmt.Errorf("attribute %q given more than once", name))
	}

	if err := conn.Add(newAddRequest(dn, attrs)); err != nil {
		logger.Error("Failed to add entry", zap.Error(err))
		return a.operationError(err)
	}

	logger.Info("Added entry")

	return nil
}

// Remove deletes the entry rdn under the base.
func (a *Authenticator) Remove(rdn string) error {
	conn, err := a.connection()
	if err != nil {
		return err
	}

	dn := a.qualify(rdn)
	logger := a.logger.With(zap.String("dn", dn))

	if err := conn.Del(ldap.NewDelRequest(dn, nil)); err != nil {
		logger.Error("Failed to remove entry", zap.Error(err))
		return a.operationError(err)
	}

	logger.Info("Removed entry")

	return nil
}

// Update brings the entry rdn under the base in line with attrs. Attributes
// mapped to an empty value are deleted and attributes not named in attrs are
// left untouched. When newRDN is not empty the entry is renamed in place
// first and its old naming value is dropped.
func (a *Authenticator) Update(rdn string, attrs Attributes, newRDN string) error {
	conn, err := a.connection()
	if err != nil {
		return err
	}

	dn := a.qualify(rdn)
	logger := a.logger.With(zap.String("dn", dn))

	if name, ok := duplicateAttribute(attrs); ok {
		return a.operationError(fmt.Errorf("attribute %q given more than once", name))
	}

	current, err := a.fetch(conn, dn)
	if err != nil {
		logger.Error("Failed to fetch entry", zap.Error(err))
		return a.operationError(err)
	}

	if newRDN != "" {
		if err := conn.ModifyDN(ldap.NewModifyDNRequest(dn, newRDN, true, "")); err != nil {
			logger.Error("Failed to rename entry", zap.String("newRDN", newRDN), zap.Error(err))
			return a.operationError(err)
		}

		dn = renamed(dn, newRDN)
		logger = a.logger.With(zap.String("dn", dn))
		logger.Info("Renamed entry")
	}

	modifyRequest := ldap.NewModifyRequest(dn, nil)
	modifyChanges(modifyRequest, current, attrs)

	if len(modifyRequest.Changes) > 0 {
		if err := conn.Modify(modifyRequest); err != nil {
			logger.Error("Failed to update entry", zap.Error(err))
			return a.operationError(err)
		}

		logger.Info("Updated entry", zap.Int("changes", len(modifyRequest.Changes)))
	}

	return nil
}

// ValidateUniqueness checks, in order, that no entry below the base carries
// any of the candidate values. The first value found is reported as an
// AlreadyExists error.
func (a *Authenticator) ValidateUniqueness(candidates ...Candidate) error {
	for _, c := range candidates {
		if !validAttribute(c.Attribute) {
			return a.operationError(fmt.Errorf("invalid attribute description %q", c.Attribute))
		}

		entries, err := a.Search(WithFilter(fmt.Sprintf("(%s=%s)", c.Attribute, ldap.EscapeFilter(c.Value))))
		if err != nil {
			return err
		}

		if len(entries) > 0 {
			return newError(a.translator, KindAlreadyExists, i18n.KeyAttributeAlreadyExists, nil, c.Attribute, c.Value)
		}
	}

	return nil
}

func (a *Authenticator) fetch(conn directory.Conn, dn string) (*ldap.Entry, error) {
	searchRequest := ldap.NewSearchRequest(
		dn,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		defaultFilter,
		nil,
		nil,
	)

	searchResult, err := conn.Search(searchRequest)
	if err != nil {
		return nil, err
	}

	if len(searchResult.Entries) == 0 {
		return nil, ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("entry not found: %s", dn))
	}

	return searchResult.Entries[0], nil
}

func (a *Authenticator) connection() (directory.Conn, error) {
	if a.conn == nil {
		return nil, newError(a.translator, KindNotConnected, i18n.KeyNotConnected, nil)
	}

	return a.conn, nil
}

func (a *Authenticator) operationError(err error) error {
	return newError(a.translator, KindDirectoryOperation, i18n.KeyOperationError, err)
}

// renamed returns the dn an entry ends up with after its leading RDN is
// replaced by newRDN.
func renamed(dn, newRDN string) string {
	var escaped bool
	for i, r := range dn {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ',':
			return newRDN + dn[i:]
		}
	}

	return newRDN
}
