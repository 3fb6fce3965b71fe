// Package party is the directory of authorized warehouse keepers and
// registered consignees.
//
// The lifecycle itself only compares addresses. The directory answers the
// questions the orchestration layer asks before a consignment is opened:
// is the consignor known, and may it move this category of goods.
package party

import (
	"context"
	"sort"
	"sync"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/sentinel"
)

// PartyInfo describes an economic operator registered for excise movements.
type PartyInfo struct {
	Address              id.PartyID             `json:"address"`
	Name                 string                 `json:"name"`
	ExciseNumber         string                 `json:"excise_number"`
	Country              string                 `json:"country"`
	AuthorizedCategories []models.GoodsCategory `json:"authorized_categories"`
}

// Authorizes reports whether the operator may move goods of category.
func (p *PartyInfo) Authorizes(category models.GoodsCategory) bool {
	for _, c := range p.AuthorizedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Directory is an in-memory party registry safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	parties map[id.PartyID]*PartyInfo
}

func NewDirectory() *Directory {
	return &Directory{parties: make(map[id.PartyID]*PartyInfo)}
}

// Register adds or replaces a party.
func (d *Directory) Register(_ context.Context, info PartyInfo) error {
	if info.Address.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "party address is required")
	}
	if info.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "party name is required")
	}
	for _, c := range info.AuthorizedCategories {
		if !c.IsValid() {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "unknown goods category %q", c)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := info
	stored.AuthorizedCategories = append([]models.GoodsCategory(nil), info.AuthorizedCategories...)
	d.parties[info.Address] = &stored
	return nil
}

// Lookup returns sentinel.ErrNotFound for unregistered addresses.
func (d *Directory) Lookup(_ context.Context, address id.PartyID) (*PartyInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.parties[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *p
	out.AuthorizedCategories = append([]models.GoodsCategory(nil), p.AuthorizedCategories...)
	return &out, nil
}

// List returns every party ordered by name.
func (d *Directory) List(_ context.Context) []*PartyInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*PartyInfo, 0, len(d.parties))
	for _, p := range d.parties {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolver looks up registered parties.
type Resolver interface {
	Lookup(ctx context.Context, address id.PartyID) (*PartyInfo, error)
}

// Enrich resolves the given addresses, skipping unknown ones.
func Enrich(ctx context.Context, d Resolver, addresses ...id.PartyID) map[id.PartyID]*PartyInfo {
	out := make(map[id.PartyID]*PartyInfo, len(addresses))
	for _, a := range addresses {
		if p, err := d.Lookup(ctx, a); err == nil {
			out[a] = p
		}
	}
	return out
}
