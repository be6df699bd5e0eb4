// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accesscontrol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// SourceKind identifies where a rego_expression's policy text lives.
type SourceKind string

const (
	SourceFile  SourceKind = "file"
	SourceHTTP  SourceKind = "http"
	SourceRedis SourceKind = "redis"
)

// Source names one Rego policy's on-disk/network/KV location and the
// Rego rule it should be evaluated against. It is immutable config;
// fetched content lives alongside it in a RegoPredicate.
type Source struct {
	Kind         SourceKind
	URL          string
	RedisKey     string
	RegoRulePath string

	redisClient *redis.Client
}

type sourceYAML struct {
	LocationType string `yaml:"location-type"`
	URL          string `yaml:"url"`
	RedisKey     string `yaml:"redis-key"`
	RegoRulePath string `yaml:"rego-rule-path"`
}

func (s *Source) UnmarshalYAML(value *yaml.Node) error {
	var raw sourceYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	kind := SourceKind(raw.LocationType)
	switch kind {
	case SourceFile, SourceHTTP, SourceRedis:
	default:
		return fmt.Errorf("%w: unknown rego source location-type %q", ErrInvalidConfig, raw.LocationType)
	}
	if kind == SourceRedis && raw.RedisKey == "" {
		return fmt.Errorf("%w: redis rego source requires redis-key", ErrInvalidConfig)
	}
	*s = Source{Kind: kind, URL: raw.URL, RedisKey: raw.RedisKey, RegoRulePath: raw.RegoRulePath}
	return nil
}

func (s Source) MarshalYAML() (interface{}, error) {
	return sourceYAML{
		LocationType: string(s.Kind),
		URL:          s.URL,
		RedisKey:     s.RedisKey,
		RegoRulePath: s.RegoRulePath,
	}, nil
}

func (s Source) String() string {
	switch s.Kind {
	case SourceRedis:
		return fmt.Sprintf("url: %s, rule_path: %s, redis_key: %s", s.URL, s.RegoRulePath, s.RedisKey)
	default:
		return fmt.Sprintf("url: %s rule_path: %s", s.URL, s.RegoRulePath)
	}
}

// FetchString loads the source's current policy text.
func (s Source) FetchString(ctx context.Context) (string, error) {
	switch s.Kind {
	case SourceFile:
		data, err := os.ReadFile(s.URL)
		if err != nil {
			return "", fmt.Errorf("%w: unable to load rego source from %q: %v", ErrSourceFetch, s.URL, err)
		}
		return string(data), nil

	case SourceHTTP:
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceFetch, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: unable to load rego source from %q: %v", ErrSourceFetch, s.URL, err)
		}
		defer cleanlyCloseBody(resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return "", fmt.Errorf("%w: rego source %q responded with status %d", ErrSourceFetch, s.URL, resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrSourceFetch, err)
		}
		return string(data), nil

	case SourceRedis:
		client, err := s.client()
		if err != nil {
			return "", err
		}
		data, err := client.Get(ctx, s.RedisKey).Result()
		if err != nil {
			return "", fmt.Errorf("%w: unable to get rego source from redis key %q: %v", ErrSourceFetch, s.RedisKey, err)
		}
		return data, nil

	default:
		return "", fmt.Errorf("%w: unknown rego source kind %q", ErrInvalidConfig, s.Kind)
	}
}

func (s *Source) client() (*redis.Client, error) {
	if s.redisClient != nil {
		return s.redisClient, nil
	}
	opts, err := redis.ParseURL(s.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url %q for rego source: %v", ErrInvalidConfig, s.URL, err)
	}
	s.redisClient = redis.NewClient(opts)
	return s.redisClient, nil
}
