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

// Package i18n renders user facing messages from short identifiers. Callers
// supply a key and positional arguments and never the rendered text.
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	KeyInvalidPassword        = "invalid_password"
	KeyServerDown             = "ldap_server_down"
	KeyOperationError         = "ldap_operation_error"
	KeyAttributeAlreadyExists = "ldap_attribute_already_exists"
	KeyNotConnected           = "ldap_not_connected"
)

// Translator looks up the message for key and formats it with args.
type Translator interface {
	Translate(key string, args ...any) string
}

// TranslatorFunc makes it easy to use a func as a Translator.
type TranslatorFunc func(key string, args ...any) string

func (f TranslatorFunc) Translate(key string, args ...any) string {
	return f(key, args...)
}

var supported = []language.Tag{language.English, language.French}

var messages = map[language.Tag]map[string]string{
	language.English: {
		KeyInvalidPassword:        "Invalid password",
		KeyServerDown:             "Unable to reach LDAP server",
		KeyOperationError:         "An error occurred during LDAP operation",
		KeyAttributeAlreadyExists: "Attribute '%s' already exists with value '%s'",
		KeyNotConnected:           "Not connected to the LDAP server",
	},
	language.French: {
		KeyInvalidPassword:        "Mot de passe incorrect",
		KeyServerDown:             "Impossible de joindre le serveur LDAP",
		KeyOperationError:         "Une erreur est survenue lors de l'opération LDAP",
		KeyAttributeAlreadyExists: "L'attribut '%s' existe déjà avec la valeur '%s'",
		KeyNotConnected:           "Non connecté au serveur LDAP",
	},
}

type catalogTranslator struct {
	printer *message.Printer
}

// NewTranslator returns a Translator for the given language, falling back to
// English for messages that have no translation.
func NewTranslator(tag language.Tag) (Translator, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for lang, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(lang, key, msg); err != nil {
				return nil, err
			}
		}
	}

	_, index, _ := language.NewMatcher(supported).Match(tag)

	return &catalogTranslator{
		printer: message.NewPrinter(supported[index], message.Catalog(b)),
	}, nil
}

// ForLocale returns a Translator for a BCP 47 locale such as "fr" or
// "en-GB". An empty locale selects English.
func ForLocale(locale string) (Translator, error) {
	if locale == "" {
		return Default(), nil
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	return NewTranslator(tag)
}

// Default returns the English translator.
func Default() Translator {
	t, err := NewTranslator(language.English)
	if err != nil {
		panic(err)
	}

	return t
}

func (t *catalogTranslator) Translate(key string, args ...any) string {
	if _, ok := messages[language.English][key]; !ok {
		return key
	}

	return t.printer.Sprintf(key, args...)
}
