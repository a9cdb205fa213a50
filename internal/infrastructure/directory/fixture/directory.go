// Package fixture serves the property directory from a YAML document. It backs
// local development and demos; production deployments point FIXTURES_PATH at
// an export of the property-management database.
package fixture

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/AgenticProfessor/HappyTenant.AI-sub000/internal/core/domain"
)

//go:embed sample.yaml
var sampleData []byte

type dataset struct {
	Properties          []domain.Property           `yaml:"properties"`
	Tenants             []domain.Tenant             `yaml:"tenants"`
	MaintenanceRequests []domain.MaintenanceRequest `yaml:"maintenance_requests"`
	Applications        []domain.RentalApplication  `yaml:"applications"`
	Payments            []domain.Payment            `yaml:"payments"`
}

type Directory struct {
	mu   sync.RWMutex
	data dataset
}

// Load reads the directory from path, or the bundled sample when path is
// empty.
func Load(path string) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return Decode(bytes.NewReader(sampleData))
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

func Decode(r io.Reader) (*Directory, error) {
	var data dataset
	if err := yaml.NewDecoder(r).Decode(&data); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &Directory{data: data}, nil
}

func (d *Directory) ListProperties(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Property, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return selectItems(ctx, d.data.Properties, filter, func(p domain.Property) bool {
		return matches(filter.ID, p.ID)
	})
}

func (d *Directory) ListTenants(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Tenant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return selectItems(ctx, d.data.Tenants, filter, func(t domain.Tenant) bool {
		return matches(filter.ID, t.ID) && matches(filter.PropertyID, t.PropertyID) && matchesFold(filter.Status, t.Status)
	})
}

func (d *Directory) ListMaintenanceRequests(ctx context.Context, filter domain.DirectoryFilter) ([]domain.MaintenanceRequest, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items, err := selectItems(ctx, d.data.MaintenanceRequests, filter, func(r domain.MaintenanceRequest) bool {
		return matches(filter.ID, r.ID) && matches(filter.PropertyID, r.PropertyID) &&
			matches(filter.TenantID, r.TenantID) && matchesFold(filter.Status, r.Status)
	})
	return items, err
}

func (d *Directory) ListApplications(ctx context.Context, filter domain.DirectoryFilter) ([]domain.RentalApplication, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return selectItems(ctx, d.data.Applications, filter, func(a domain.RentalApplication) bool {
		return matches(filter.ID, a.ID) && matches(filter.PropertyID, a.PropertyID) && matchesFold(filter.Status, a.Status)
	})
}

func (d *Directory) ListPayments(ctx context.Context, filter domain.DirectoryFilter) ([]domain.Payment, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return selectItems(ctx, d.data.Payments, filter, func(p domain.Payment) bool {
		return matches(filter.ID, p.ID) && matches(filter.PropertyID, p.PropertyID) &&
			matches(filter.TenantID, p.TenantID) && matchesFold(filter.Status, p.Status)
	})
}

// selectItems returns copies so callers cannot mutate the dataset. Limit <= 0
// means no limit.
func selectItems[T any](ctx context.Context, items []T, filter domain.DirectoryFilter, keep func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]T, 0, min(len(items), max(filter.Limit, 0)))
	for _, item := range items {
		if !keep(item) {
			continue
		}
		out = append(out, item)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return slices.Clip(out), nil
}

func matches(want, got string) bool {
	return want == "" || want == got
}

func matchesFold(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
