// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

// Package secrets brokers the key/value store for users. The store token
// can touch the whole root; the per-user prefix is enforced here, before
// any path reaches the wire.
package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/AMD-AGI/primus-papi/pkg/clients/secretstore"
	"github.com/AMD-AGI/primus-papi/pkg/config"
	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

type Broker struct {
	store    *secretstore.Client
	profiles map[string]config.VOProfile
}

func NewBroker(store *secretstore.Client, profiles map[string]config.VOProfile) *Broker {
	return &Broker{store: store, profiles: profiles}
}

// userPrefix is the subtree one user owns inside a VO:
// /<secret-root>/<VO>/users/<subject>.
func (b *Broker) userPrefix(user, vo string) (string, error) {
	profile, ok := b.profiles[vo]
	if !ok {
		return "", errors.NewForbidden("unknown virtual organization " + vo)
	}
	return fmt.Sprintf("%s/users/%s", profile.SecretRoot, user), nil
}

// scope resolves a user-supplied subpath against the owned subtree and
// rejects any attempt to step outside it. Users never name absolute
// paths; everything is relative to their prefix.
func (b *Broker) scope(user, vo, subpath string) (string, error) {
	prefix, err := b.userPrefix(user, vo)
	if err != nil {
		return "", err
	}
	cleaned := strings.Trim(subpath, "/")
	if cleaned == "" {
		return prefix, nil
	}
	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." || segment == "." || segment == "" {
			return "", errors.NewForbidden("secret path escapes the user subtree")
		}
	}
	return prefix + "/" + cleaned, nil
}

// List returns the secret names under a subpath of the user's subtree.
func (b *Broker) List(ctx context.Context, user, vo, subpath string) ([]string, error) {
	path, err := b.scope(user, vo, subpath)
	if err != nil {
		return nil, err
	}
	return b.store.List(ctx, path)
}

func (b *Broker) Get(ctx context.Context, user, vo, subpath string) (map[string]interface{}, error) {
	path, err := b.scope(user, vo, subpath)
	if err != nil {
		return nil, err
	}
	if path == mustPrefix(b, user, vo) {
		return nil, errors.NewBadRequest("secret path is required")
	}
	return b.store.Get(ctx, path)
}

func (b *Broker) Put(ctx context.Context, user, vo, subpath string, value map[string]interface{}) error {
	path, err := b.scope(user, vo, subpath)
	if err != nil {
		return err
	}
	if path == mustPrefix(b, user, vo) {
		return errors.NewBadRequest("secret path is required")
	}
	return b.store.Put(ctx, path, value)
}

func (b *Broker) Delete(ctx context.Context, user, vo, subpath string) error {
	path, err := b.scope(user, vo, subpath)
	if err != nil {
		return err
	}
	if path == mustPrefix(b, user, vo) {
		return errors.NewBadRequest("secret path is required")
	}
	return b.store.Delete(ctx, path)
}

func mustPrefix(b *Broker, user, vo string) string {
	prefix, _ := b.userPrefix(user, vo)
	return prefix
}

// GetValue reads one key of a secret, for template substitution.
func (b *Broker) GetValue(ctx context.Context, user, vo, subpath, key string) (string, error) {
	data, err := b.Get(ctx, user, vo, subpath)
	if err != nil {
		return "", err
	}
	value, ok := data[key]
	if !ok {
		return "", errors.NewNotFound(fmt.Sprintf("secret %s has no key %s", subpath, key))
	}
	return fmt.Sprintf("%v", value), nil
}
