// Package credential resolves integration ids to the secrets handed to actions.
package credential

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/warriorguo/autoflow/store"
	"github.com/warriorguo/autoflow/types"
	"github.com/warriorguo/autoflow/utils"
)

var (
	_ types.CredentialProvider = &StaticProvider{}
	_ types.CredentialProvider = &StoreProvider{}
)

// StaticProvider serves credentials from memory.
type StaticProvider struct {
	lock  sync.RWMutex
	creds map[string]types.Credentials
}

func NewStaticProvider(creds map[string]types.Credentials) *StaticProvider {
	p := &StaticProvider{creds: make(map[string]types.Credentials, len(creds))}
	for id, c := range creds {
		p.creds[id] = utils.CloneMap(c)
	}
	return p
}

func (p *StaticProvider) Put(integrationID string, creds types.Credentials) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.creds[integrationID] = utils.CloneMap(creds)
}

func (p *StaticProvider) Fetch(ctx context.Context, integrationID string) (types.Credentials, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	c, ok := p.creds[integrationID]
	if !ok {
		return nil, errors.NotFoundf("integration %s", integrationID)
	}
	return utils.CloneMap(c), nil
}

// StoreProvider keeps credentials as JSON under store.IntegrationPath.
type StoreProvider struct {
	store store.Store
}

func NewStoreProvider(s store.Store) *StoreProvider {
	return &StoreProvider{store: s}
}

func (p *StoreProvider) Save(ctx context.Context, integrationID string, creds types.Credentials) error {
	if integrationID == "" {
		return errors.BadRequestf("empty integration id")
	}
	b, err := utils.Serialize(creds)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.store.Set(ctx, store.IntegrationPath, integrationID, b))
}

func (p *StoreProvider) Remove(ctx context.Context, integrationID string) error {
	return errors.Trace(p.store.Remove(ctx, store.IntegrationPath, integrationID))
}

func (p *StoreProvider) Fetch(ctx context.Context, integrationID string) (types.Credentials, error) {
	b, err := p.store.Get(ctx, store.IntegrationPath, integrationID)
	if err != nil {
		return nil, errors.Annotatef(err, "fetch integration %s", integrationID)
	}
	if b == nil {
		return nil, errors.NotFoundf("integration %s", integrationID)
	}
	creds := types.Credentials{}
	if err := utils.Unserialize(b, &creds); err != nil {
		return nil, errors.Annotatef(err, "decode integration %s", integrationID)
	}
	return creds, nil
}
