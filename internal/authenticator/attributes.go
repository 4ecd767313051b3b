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
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/api"
	"k8s.io/apimachinery/pkg/util/sets"
)

type (
	Value      = api.Value
	Single     = api.Single
	Multi      = api.Multi
	Attributes = api.Attributes
	Entry      = api.Entry
	Candidate  = api.Candidate
)

// attributeNames returns the attribute names in a stable order.
func attributeNames(attrs Attributes) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func attributeValues(attrs Attributes, name string) []string {
	if v := attrs[name]; v != nil {
		return v.Values()
	}

	return nil
}

// duplicateAttribute returns a name that occurs more than once in attrs when
// names are compared ignoring case.
func duplicateAttribute(attrs Attributes) (string, bool) {
	seen := make(map[string]struct{}, len(attrs))
	for _, name := range attributeNames(attrs) {
		folded := strings.ToLower(name)
		if _, ok := seen[folded]; ok {
			return name, true
		}
		seen[folded] = struct{}{}
	}

	return "", false
}

// validAttribute reports whether name is a bare attribute description: a
// descriptor or numeric OID, optionally followed by ";" options.
func validAttribute(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == ';', r == '.':
		default:
			return false
		}
	}

	return true
}

func newAddRequest(dn string, attrs Attributes) *ldap.AddRequest {
	addRequest := ldap.NewAddRequest(dn, nil)
	for _, name := range attributeNames(attrs) {
		if values := attributeValues(attrs, name); len(values) > 0 {
			addRequest.Attribute(name, values)
		}
	}

	return addRequest
}

// modifyChanges records on modifyRequest the changes that turn current into
// desired. Attributes that are not named in desired are left alone.
func modifyChanges(modifyRequest *ldap.ModifyRequest, current *ldap.Entry, desired Attributes) {
	for _, name := range attributeNames(desired) {
		want := attributeValues(desired, name)
		have := entryValues(current, name)

		switch {
		case len(want) == 0:
			if len(have) > 0 {
				modifyRequest.Delete(name, []string{})
			}
		case len(have) == 0:
			modifyRequest.Add(name, want)
		case !sets.New(have...).Equal(sets.New(want...)):
			modifyRequest.Replace(name, want)
		}
	}
}

// entryValues looks up an attribute ignoring case, as LDAP attribute
// descriptions are case insensitive.
func entryValues(entry *ldap.Entry, name string) []string {
	for _, attr := range entry.Attributes {
		if strings.EqualFold(attr.Name, name) {
			return attr.Values
		}
	}

	return nil
}

func toEntry(entry *ldap.Entry, withDN bool) Entry {
	e := make(Entry, len(entry.Attributes)+1)
	for _, attr := range entry.Attributes {
		e[attr.Name] = append(e[attr.Name], attr.Values...)
	}

	if withDN {
		e["dn"] = []string{entry.DN}
	}

	return e
}
