package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/mattjoyce/plugbus/internal/component"
)

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
)

// validate performs structural validation on a fully merged configuration.
func validate(cfg *Config) error {
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if !validLogFormats[strings.ToLower(cfg.Service.LogFormat)] {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if cfg.PluginsDir == "" {
		return fmt.Errorf("plugins_dir is required")
	}

	v := cfg.Platform.Version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("platform.version %q is not a valid semantic version", cfg.Platform.Version)
	}

	if cfg.API.Enabled {
		if _, _, err := net.SplitHostPort(cfg.API.Listen); err != nil {
			return fmt.Errorf("api.listen %q: %w", cfg.API.Listen, err)
		}
		if err := checkUnresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, t := range cfg.API.Auth.Tokens {
			field := fmt.Sprintf("api.auth.tokens[%d]", i)
			if err := checkUnresolved(field+".token", t.Token); err != nil {
				return err
			}
			if strings.TrimSpace(t.Token) == "" {
				return fmt.Errorf("%s: token is empty", field)
			}
			if len(t.Scopes) == 0 {
				return fmt.Errorf("%s: at least one scope is required", field)
			}
		}
	}

	if err := validateWebhooks(cfg.Webhooks); err != nil {
		return err
	}

	if cfg.Telemetry.Endpoint != "" {
		if err := checkUnresolved("telemetry.endpoint", cfg.Telemetry.Endpoint); err != nil {
			return err
		}
		u, err := url.Parse(cfg.Telemetry.Endpoint)
		if err != nil || u.Host == "" {
			return fmt.Errorf("telemetry.endpoint %q must be an absolute URL", cfg.Telemetry.Endpoint)
		}
	}

	for id, t := range cfg.Tenants {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("tenants: empty tenant id")
		}
		for i, c := range t.Components {
			if !component.ValidID(c) {
				return fmt.Errorf("tenant %q: components[%d]: invalid component id %q", id, i, c)
			}
		}
	}
	return nil
}

func validateWebhooks(wc *WebhooksConfig) error {
	if wc == nil || len(wc.Endpoints) == 0 {
		return nil
	}
	if _, _, err := net.SplitHostPort(wc.Listen); err != nil {
		return fmt.Errorf("webhooks.listen %q: %w", wc.Listen, err)
	}
	seen := make(map[string]bool, len(wc.Endpoints))
	for i, ep := range wc.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%s: path %q must start with /", field, ep.Path)
		}
		if seen[ep.Path] {
			return fmt.Errorf("%s: duplicate path %q", field, ep.Path)
		}
		seen[ep.Path] = true
		if ep.Tenant == "" || ep.Channel == "" {
			return fmt.Errorf("%s: tenant and channel are required", field)
		}
		if ep.SignatureHeader == "" {
			return fmt.Errorf("%s: signature_header is required", field)
		}
		if err := checkUnresolved(field+".secret", ep.Secret); err != nil {
			return err
		}
		if ep.Secret == "" {
			return fmt.Errorf("%s: secret is required", field)
		}
	}
	return nil
}

// checkUnresolved rejects values still carrying a ${VAR} placeholder after interpolation.
func checkUnresolved(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
