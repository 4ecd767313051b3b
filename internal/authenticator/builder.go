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

	"github.com/gpu-ninja/ldap-authenticator/internal/config"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/gpu-ninja/ldap-authenticator/internal/i18n"
	"go.uber.org/zap"
)

type Builder interface {
	WithName(name string) Builder
	WithConfig(cfg *config.Config) Builder
	WithLogger(logger *zap.Logger) Builder
	WithTranslator(translator i18n.Translator) Builder
	WithDialer(dialer directory.Dialer) Builder
	Build() (*Authenticator, error)
}

type builderImpl struct {
	name       string
	cfg        *config.Config
	logger     *zap.Logger
	translator i18n.Translator
	dialer     directory.Dialer
}

func NewBuilder() Builder {
	return &builderImpl{}
}

func (b *builderImpl) WithName(name string) Builder {
	c := *b
	c.name = name
	return &c
}

func (b *builderImpl) WithConfig(cfg *config.Config) Builder {
	c := *b
	c.cfg = cfg
	return &c
}

func (b *builderImpl) WithLogger(logger *zap.Logger) Builder {
	c := *b
	c.logger = logger
	return &c
}

func (b *builderImpl) WithTranslator(translator i18n.Translator) Builder {
	c := *b
	c.translator = translator
	return &c
}

func (b *builderImpl) WithDialer(dialer directory.Dialer) Builder {
	c := *b
	c.dialer = dialer
	return &c
}

// Build validates the configuration and constructs the authenticator. In
// anonymous mode this binds to the directory.
func (b *builderImpl) Build() (*Authenticator, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	name := b.cfg.Name
	if b.name != "" {
		name = b.name
	}

	dialer := b.dialer
	if dialer == nil {
		dialOpts, err := b.cfg.DialOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to build dial options: %w", err)
		}

		dialer = directory.NewDialer(dialOpts)
	}

	translator := b.translator
	if translator == nil {
		var err error
		translator, err = i18n.ForLocale(b.cfg.Locale)
		if err != nil {
			return nil, fmt.Errorf("failed to load translations: %w", err)
		}
	}

	opts := []Option{WithDialer(dialer), WithTranslator(translator)}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}

	return New(name, b.cfg.URI, b.cfg.BaseDN, b.cfg.UserRDN, opts...)
}
