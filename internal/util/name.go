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

import "crypto/rand"

const (
	nameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	nameSuffix   = 5
)

// GenerateName returns prefix followed by a dash and a short random suffix,
// usable as a throwaway directory entry name.
func GenerateName(prefix string) string {
	// Largest multiple of the alphabet size that fits in a byte, so every
	// character is equally likely.
	limit := byte(256 - 256%len(nameAlphabet))

	suffix := make([]byte, 0, nameSuffix)
	buf := make([]byte, 2*nameSuffix)
	for len(suffix) < nameSuffix {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}

		for _, b := range buf {
			if b < limit && len(suffix) < nameSuffix {
				suffix = append(suffix, nameAlphabet[int(b)%len(nameAlphabet)])
			}
		}
	}

	return prefix + "-" + string(suffix)
}
