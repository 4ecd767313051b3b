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

package util

import "strings"

// Contains returns true if the slice contains the given element.
func Contains[T comparable](elems []T, v T) bool {
	for _, s := range elems {
		if v == s {
			return true
		}
	}

	return false
}

// ContainsFold returns true if the slice contains s under Unicode case folding.
// LDAP attribute descriptions compare this way.
func ContainsFold(elems []string, s string) bool {
	for _, e := range elems {
		if strings.EqualFold(e, s) {
			return true
		}
	}

	return false
}

// NonEmpty returns the elements of the slice that are not the zero value.
func NonEmpty[T comparable](elems []T) []T {
	var zero T

	var out []T
	for _, e := range elems {
		if e != zero {
			out = append(out, e)
		}
	}

	return out
}
