package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

var ErrCorrupt = errors.New("record cannot be decoded")

// Checks stores check records in the "checks" collection of a Store.
type Checks struct {
	store Store
}

func NewChecks(s Store) *Checks {
	return &Checks{store: s}
}

func (c *Checks) IDs(ctx context.Context) ([]string, error) {
	ids, err := c.store.List(ctx, domain.CollectionChecks)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	return ids, nil
}

// Read returns the stored record as-is; it still has to be validated.
func (c *Checks) Read(ctx context.Context, id string) (domain.RawCheck, error) {
	data, err := c.store.Read(ctx, domain.CollectionChecks, id)
	if err != nil {
		return domain.RawCheck{}, fmt.Errorf("read check %s: %w", id, err)
	}
	var raw domain.RawCheck
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.RawCheck{}, fmt.Errorf("read check %s: %w: %w", id, ErrCorrupt, err)
	}
	return raw, nil
}

func (c *Checks) Create(ctx context.Context, chk domain.Check) error {
	data, err := json.Marshal(chk.Record())
	if err != nil {
		return fmt.Errorf("encode check %s: %w", chk.ID, err)
	}
	if err := c.store.Create(ctx, domain.CollectionChecks, chk.ID, data); err != nil {
		return fmt.Errorf("create check %s: %w", chk.ID, err)
	}
	return nil
}

func (c *Checks) Update(ctx context.Context, chk domain.Check) error {
	data, err := json.Marshal(chk.Record())
	if err != nil {
		return fmt.Errorf("encode check %s: %w", chk.ID, err)
	}
	if err := c.store.Update(ctx, domain.CollectionChecks, chk.ID, data); err != nil {
		return fmt.Errorf("update check %s: %w", chk.ID, err)
	}
	return nil
}

func (c *Checks) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, domain.CollectionChecks, id); err != nil {
		return fmt.Errorf("delete check %s: %w", id, err)
	}
	return nil
}
