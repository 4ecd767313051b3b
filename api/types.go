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

package api

import "github.com/gpu-ninja/ldap-authenticator/internal/util"

// Value is the desired value of a single attribute, either Single or Multi.
type Value interface {
	Values() []string
	isValue()
}

// Single is a one valued attribute. The empty string means no value.
type Single string

func (s Single) Values() []string {
	if s == "" {
		return nil
	}

	return []string{string(s)}
}

func (Single) isValue() {}

// Multi is a multi valued attribute. Empty strings are ignored.
type Multi []string

func (m Multi) Values() []string {
	return util.NonEmpty([]string(m))
}

func (Multi) isValue() {}

// Attributes is the desired attribute set of an entry.
type Attributes map[string]Value

// Entry is a single search result, keyed by attribute name.
type Entry map[string][]string

// Candidate is an attribute/value pair that must not already exist in the
// directory.
type Candidate struct {
	Attribute string
	Value     string
}

// SearchOptions describes a subtree search.
type SearchOptions struct {
	// Base is the entry the search starts from.
	Base string
	// Filter is an RFC 4515 search filter.
	Filter string
	// Attributes lists the attributes returned for each entry, nil for all
	// of them. The "dn" pseudo attribute adds the entry's distinguished name.
	Attributes []string
}

// SearchOption customizes a search.
type SearchOption func(o *SearchOptions)
