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
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// matchFilter evaluates a filter compiled by ldap.CompileFilter against a
// record. Matching is case insensitive, as for the caseIgnoreMatch rule.
func matchFilter(packet *ber.Packet, r *record) (bool, error) {
	switch packet.Tag {
	case ldap.FilterAnd:
		for _, child := range packet.Children {
			ok, err := matchFilter(child, r)
			if err != nil || !ok {
				return false, err
			}
		}

		return true, nil
	case ldap.FilterOr:
		for _, child := range packet.Children {
			ok, err := matchFilter(child, r)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	case ldap.FilterNot:
		if len(packet.Children) != 1 {
			return false, fmt.Errorf("malformed not filter")
		}

		ok, err := matchFilter(packet.Children[0], r)
		if err != nil {
			return false, err
		}

		return !ok, nil
	case ldap.FilterPresent:
		return len(r.get(packetString(packet))) > 0, nil
	case ldap.FilterEqualityMatch, ldap.FilterApproxMatch:
		attr, value, err := assertion(packet)
		if err != nil {
			return false, err
		}

		return containsValue(r.get(attr), value, true), nil
	case ldap.FilterGreaterOrEqual, ldap.FilterLessOrEqual:
		attr, value, err := assertion(packet)
		if err != nil {
			return false, err
		}

		value = strings.ToLower(value)
		for _, v := range r.get(attr) {
			v = strings.ToLower(v)
			if (packet.Tag == ldap.FilterGreaterOrEqual && v >= value) ||
				(packet.Tag == ldap.FilterLessOrEqual && v <= value) {
				return true, nil
			}
		}

		return false, nil
	case ldap.FilterSubstrings:
		if len(packet.Children) != 2 {
			return false, fmt.Errorf("malformed substrings filter")
		}

		for _, v := range r.get(packetString(packet.Children[0])) {
			if matchSubstrings(strings.ToLower(v), packet.Children[1].Children) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("unsupported filter type %q", ldap.FilterMap[uint64(packet.Tag)])
	}
}

func matchSubstrings(value string, parts []*ber.Packet) bool {
	pos := 0
	for _, part := range parts {
		s := strings.ToLower(packetString(part))

		switch part.Tag {
		case ldap.FilterSubstringsInitial:
			if !strings.HasPrefix(value, s) {
				return false
			}
			pos = len(s)
		case ldap.FilterSubstringsAny:
			i := strings.Index(value[pos:], s)
			if i < 0 {
				return false
			}
			pos += i + len(s)
		case ldap.FilterSubstringsFinal:
			return len(value)-pos >= len(s) && strings.HasSuffix(value, s)
		}
	}

	return true
}

func assertion(packet *ber.Packet) (string, string, error) {
	if len(packet.Children) != 2 {
		return "", "", fmt.Errorf("malformed %s filter", ldap.FilterMap[uint64(packet.Tag)])
	}

	return packetString(packet.Children[0]), packetString(packet.Children[1]), nil
}

func packetString(packet *ber.Packet) string {
	if s, ok := packet.Value.(string); ok {
		return s
	}

	return packet.Data.String()
}
