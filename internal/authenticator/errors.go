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
	"syscall"

	"github.com/gpu-ninja/ldap-authenticator/internal/i18n"
)

// Kind classifies the failures surfaced by the authenticator.
type Kind int

const (
	KindAuthentication Kind = iota + 1
	KindServiceUnavailable
	KindDirectoryOperation
	KindAlreadyExists
	KindNotConnected
)

// codeDirectory is the errno-style code reported for directory failures.
const codeDirectory = 169

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "Authentication"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	case KindDirectoryOperation:
		return "DirectoryOperation"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindNotConnected:
		return "NotConnected"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Code returns the errno-style code frameworks attach to this kind of failure.
func (k Kind) Code() int {
	switch k {
	case KindAuthentication:
		return int(syscall.EACCES)
	case KindAlreadyExists:
		return int(syscall.EEXIST)
	default:
		return codeDirectory
	}
}

// Sentinels for use with errors.Is.
var (
	ErrAuthentication     = &Error{Kind: KindAuthentication, Key: i18n.KeyInvalidPassword}
	ErrServiceUnavailable = &Error{Kind: KindServiceUnavailable, Key: i18n.KeyServerDown}
	ErrDirectoryOperation = &Error{Kind: KindDirectoryOperation, Key: i18n.KeyOperationError}
	ErrAlreadyExists      = &Error{Kind: KindAlreadyExists, Key: i18n.KeyAttributeAlreadyExists}
	ErrNotConnected       = &Error{Kind: KindNotConnected, Key: i18n.KeyNotConnected}
)

// Error is a failure reported to the caller. Key and Args identify the user
// facing message, Message holds it rendered in the configured language and
// Cause is the underlying directory error, if any.
type Error struct {
	Kind    Kind
	Key     string
	Args    []any
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Key
	}

	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so the package sentinels can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code is shorthand for e.Kind.Code().
func (e *Error) Code() int {
	return e.Kind.Code()
}

func newError(translator i18n.Translator, kind Kind, key string, cause error, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Key:     key,
		Args:    args,
		Message: translator.Translate(key, args...),
		Cause:   cause,
	}
}
