package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/jkindrix/zenquote/internal/domain"
)

var entryValidator = validator.New()

// document mirrors the catalog JSON with entries left raw, so one malformed
// entry does not reject the whole document.
type document struct {
	AllServices  map[string]json.RawMessage `json:"allServices"`
	MonthlyPlans []json.RawMessage          `json:"monthlyPlans"`
}

type rawCategory struct {
	Name        string            `json:"name" validate:"required"`
	IsExclusive bool              `json:"isExclusive"`
	Items       []json.RawMessage `json:"items"`
}

// Dropped describes one entry removed during parsing.
type Dropped struct {
	Path   string
	Reason string
}

// Parse decodes and validates a catalog document. Malformed categories,
// services and plans are dropped and reported; duplicate ids keep the first
// occurrence. Only a document that is not a JSON object is an error.
func Parse(raw []byte) (*domain.Catalog, []Dropped, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("invalid catalog document: %w", err)
	}

	cat := domain.EmptyCatalog()
	var dropped []Dropped
	seen := make(map[string]bool)

	drop := func(path string, err error) {
		dropped = append(dropped, Dropped{Path: path, Reason: err.Error()})
	}

	keys := make([]string, 0, len(doc.AllServices))
	for key := range doc.AllServices {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var rc rawCategory
		if err := decodeEntry(doc.AllServices[key], &rc); err != nil {
			drop("allServices."+key, err)
			continue
		}

		category := domain.ServiceCategory{
			Name:        rc.Name,
			IsExclusive: rc.IsExclusive,
			Items:       make([]domain.Service, 0, len(rc.Items)),
		}
		for i, rawItem := range rc.Items {
			path := fmt.Sprintf("allServices.%s.items[%d]", key, i)
			var svc domain.Service
			if err := decodeEntry(rawItem, &svc); err != nil {
				drop(path, err)
				continue
			}
			if seen[svc.ID] {
				drop(path, fmt.Errorf("duplicate id %q", svc.ID))
				continue
			}
			seen[svc.ID] = true
			category.Items = append(category.Items, svc)
		}
		cat.Categories[key] = category
	}

	for i, rawPlan := range doc.MonthlyPlans {
		path := fmt.Sprintf("monthlyPlans[%d]", i)
		var plan domain.MonthlyPlan
		if err := decodeEntry(rawPlan, &plan); err != nil {
			drop(path, err)
			continue
		}
		if seen[plan.ID] {
			drop(path, fmt.Errorf("duplicate id %q", plan.ID))
			continue
		}
		seen[plan.ID] = true
		cat.Plans = append(cat.Plans, plan)
	}

	return cat, dropped, nil
}

func decodeEntry(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	return entryValidator.Struct(v)
}
