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

// Authenticator verifies credentials on behalf of an authentication
// framework.
type Authenticator interface {
	// Name is the configured name of the authenticator.
	Name() string
	// Vendor identifies the kind of backend, e.g. "ldap".
	Vendor() string
	// Authenticate establishes a session using password.
	Authenticate(password string) error
	// IsAuthenticated reports whether the session is still valid.
	IsAuthenticated() bool
}

// Directory is implemented by authenticators that expose the entries of the
// backing directory. Relative names are resolved against the base.
type Directory interface {
	Search(opts ...SearchOption) ([]Entry, error)
	Add(rdn string, attrs Attributes) error
	Remove(rdn string) error
	Update(rdn string, attrs Attributes, newRDN string) error
	ValidateUniqueness(candidates ...Candidate) error
}
