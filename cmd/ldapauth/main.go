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

// Command ldapauth binds to an LDAP directory, reports whether the session
// is authenticated and optionally searches the directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gpu-ninja/ldap-authenticator/api"
	"github.com/gpu-ninja/ldap-authenticator/internal/authenticator"
	"github.com/gpu-ninja/ldap-authenticator/internal/config"
	"github.com/gpu-ninja/ldap-authenticator/internal/util"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// passwordEnv holds the bind password, keeping it off the command line.
const passwordEnv = "LDAP_PASSWORD"

type result struct {
	Name          string      `yaml:"name"`
	UserDN        string      `yaml:"userDN,omitempty"`
	Authenticated bool        `yaml:"authenticated"`
	Entries       []api.Entry `yaml:"entries,omitempty"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, authenticator.NewBuilder()); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "ldapauth: %v\n", err)
		}

		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, builder authenticator.Builder) error {
	flags := pflag.NewFlagSet("ldapauth", pflag.ContinueOnError)

	configPath := flags.StringP("config", "c", "", "Path to a YAML configuration file")
	uri := flags.String("uri", "", "Directory server URI, e.g. ldap://localhost:389")
	baseDN := flags.String("base-dn", "", "Base distinguished name")
	userRDN := flags.String("user-rdn", "", "Relative name to bind as, anonymous when empty")
	logLevel := flags.String("log-level", "", "Log level (debug, info, warn, error)")
	locale := flags.String("locale", "", "Language of error messages")
	base := flags.String("base", "", "Search base, defaults to the base dn")
	filter := flags.StringP("filter", "f", "", "Search filter")
	attrs := flags.StringArrayP("attr", "a", nil, "Attribute to return, may be repeated")
	allAttributes := flags.Bool("all-attributes", false, "Return every attribute")

	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Default()
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return err
	}

	if flags.Changed("uri") {
		cfg.URI = *uri
	}
	if flags.Changed("base-dn") {
		cfg.BaseDN = *baseDN
	}
	if flags.Changed("user-rdn") {
		cfg.UserRDN = *userRDN
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = *logLevel
	}
	if flags.Changed("locale") {
		cfg.Locale = *locale
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx = util.ContextWithLogger(ctx, logger)

	a, err := builder.WithConfig(cfg).WithLogger(logger).Build()
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.UserRDN != "" {
		if err := a.Authenticate(os.Getenv(passwordEnv)); err != nil {
			return err
		}
	}

	res := result{
		Name:          a.Name(),
		UserDN:        a.UserDN(),
		Authenticated: a.IsAuthenticated(),
	}

	var opts []authenticator.SearchOption
	if *base != "" {
		opts = append(opts, authenticator.WithBase(*base))
	}
	if *filter != "" {
		opts = append(opts, authenticator.WithFilter(*filter))
	}
	if len(*attrs) > 0 {
		opts = append(opts, authenticator.WithAttributes(*attrs...))
	}
	if *allAttributes {
		opts = append(opts, authenticator.WithAllAttributes())
	}

	if len(opts) > 0 {
		if res.Entries, err = search(ctx, a, opts...); err != nil {
			return err
		}
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	return enc.Close()
}

func search(ctx context.Context, d api.Directory, opts ...authenticator.SearchOption) ([]api.Entry, error) {
	logger := util.LoggerFromContext(ctx)

	entries, err := d.Search(opts...)
	if err != nil {
		return nil, err
	}

	logger.Debug("Search complete", zap.Int("entries", len(entries)))

	return entries, nil
}
