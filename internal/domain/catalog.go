// Package domain contains the core proposal-builder types: the service catalog,
// the selection state machine, the pricing engine and saved proposals.
package domain

import (
	"sort"
)

// Service is a sellable item from the catalog. Price is the production cost.
type Service struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
	PointCost   int     `json:"pointCost,omitempty" validate:"gte=0"`
}

// ServiceCategory groups services. An exclusive category holds packages:
// at most one of its items may be chosen.
type ServiceCategory struct {
	Name        string    `json:"name" validate:"required"`
	IsExclusive bool      `json:"isExclusive"`
	Items       []Service `json:"items"`
}

// MonthlyPlan is a retainer with a fixed price and a development-point budget.
type MonthlyPlan struct {
	ID          string  `json:"id" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
	Points      int     `json:"points" validate:"gte=0"`
}

// Catalog is an immutable snapshot of the available services and plans.
type Catalog struct {
	Categories map[string]ServiceCategory `json:"allServices"`
	Plans      []MonthlyPlan              `json:"monthlyPlans"`
}

// EmptyCatalog returns the catalog used when the source is unavailable.
func EmptyCatalog() *Catalog {
	return &Catalog{
		Categories: map[string]ServiceCategory{},
		Plans:      []MonthlyPlan{},
	}
}

// IsEmpty reports whether the catalog offers nothing to select.
func (c *Catalog) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, cat := range c.Categories {
		if len(cat.Items) > 0 {
			return false
		}
	}
	return len(c.Plans) == 0
}

// CategoryKeys returns the category keys in sorted order.
func (c *Catalog) CategoryKeys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Categories))
	for k := range c.Categories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindService looks up a service by id across all categories.
// The returned category tells the caller whether the service is a package.
func (c *Catalog) FindService(id string) (Service, ServiceCategory, bool) {
	if c == nil {
		return Service{}, ServiceCategory{}, false
	}
	for _, key := range c.CategoryKeys() {
		cat := c.Categories[key]
		for _, item := range cat.Items {
			if item.ID == id {
				return item, cat, true
			}
		}
	}
	return Service{}, ServiceCategory{}, false
}

// FindPlan looks up a monthly plan by id.
func (c *Catalog) FindPlan(id string) (MonthlyPlan, bool) {
	if c == nil {
		return MonthlyPlan{}, false
	}
	for _, p := range c.Plans {
		if p.ID == id {
			return p, true
		}
	}
	return MonthlyPlan{}, false
}

// ServiceCount returns the number of services across all categories.
func (c *Catalog) ServiceCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, cat := range c.Categories {
		n += len(cat.Items)
	}
	return n
}
