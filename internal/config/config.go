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

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
	"github.com/gpu-ninja/ldap-authenticator/internal/directory"
	"github.com/gpu-ninja/ldap-authenticator/internal/util"
	"gopkg.in/yaml.v3"
)

// Config describes a single authenticator and how to reach its directory.
type Config struct {
	// Name identifies the authenticator to the surrounding framework.
	Name string `yaml:"name" default:"ldap"`
	// URI is the address of the directory server, e.g. ldap://localhost:389.
	URI string `yaml:"uri" default:"ldap://localhost:389"`
	// BaseDN is the root of every operation.
	BaseDN string `yaml:"baseDN"`
	// UserRDN is the relative name of the identity to bind as. When empty
	// the authenticator binds anonymously.
	UserRDN string `yaml:"userRDN"`
	// Timeout bounds every request sent to the directory.
	Timeout time.Duration `yaml:"timeout" default:"5s"`
	// StartTLS upgrades plain ldap:// connections.
	StartTLS bool `yaml:"startTLS"`
	// TLS configures certificate verification for ldaps:// and StartTLS.
	TLS TLS `yaml:"tls"`
	// Logging configures the process logger.
	Logging Logging `yaml:"logging"`
	// Locale selects the language of user facing messages.
	Locale string `yaml:"locale" default:"en"`
}

type TLS struct {
	// CAFile is a PEM bundle of certificate authorities to trust.
	CAFile string `yaml:"caFile"`
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"logfmt"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values: %w", err)
	}

	return cfg, nil
}

// Load reads a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}

	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("invalid uri %q: %w", c.URI, err)
	}

	if !util.Contains([]string{"ldap", "ldaps", "ldapi"}, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("invalid uri %q: unsupported scheme %q", c.URI, u.Scheme)
	}

	if c.BaseDN == "" {
		return fmt.Errorf("baseDN is required")
	}

	if _, err := ldap.ParseDN(c.BaseDN); err != nil {
		return fmt.Errorf("invalid baseDN %q: %w", c.BaseDN, err)
	}

	if c.UserRDN != "" {
		if _, err := ldap.ParseDN(c.UserRDN); err != nil {
			return fmt.Errorf("invalid userRDN %q: %w", c.UserRDN, err)
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

// TLSConfig builds the TLS configuration used for ldaps:// and StartTLS.
func (c *Config) TLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLS.InsecureSkipVerify,
	}

	if u, err := url.Parse(c.URI); err == nil && u.Host != "" {
		host := u.Host
		if h, _, err := net.SplitHostPort(u.Host); err == nil {
			host = h
		}
		tlsConfig.ServerName = host
	}

	if c.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(c.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read ca bundle: %w", err)
		}

		caBundle := x509.NewCertPool()
		if ok := caBundle.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("failed to construct ca bundle")
		}

		tlsConfig.RootCAs = caBundle
	}

	return tlsConfig, nil
}

// DialOptions translates the configuration into directory dial options.
func (c *Config) DialOptions() (directory.DialOptions, error) {
	opts := directory.DialOptions{
		Timeout:  c.Timeout,
		StartTLS: c.StartTLS,
	}

	if directory.IsLDAPS(c.URI) || c.StartTLS {
		tlsConfig, err := c.TLSConfig()
		if err != nil {
			return directory.DialOptions{}, err
		}

		opts.TLSConfig = tlsConfig
	}

	return opts, nil
}
