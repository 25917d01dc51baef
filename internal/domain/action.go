package domain

import (
	"strings"
)

// ActionType names a selection transition.
type ActionType string

const (
	ActionReset                 ActionType = "reset"
	ActionUpdateDetails         ActionType = "update_details"
	ActionSetServiceType        ActionType = "set_service_type"
	ActionSetPackage            ActionType = "set_package"
	ActionSetPlan               ActionType = "set_plan"
	ActionToggleStandardService ActionType = "toggle_standard_service"
	ActionTogglePlanService     ActionType = "toggle_plan_service"
	ActionAddCustomService      ActionType = "add_custom_service"
	ActionRemoveCustomService   ActionType = "remove_custom_service"
	ActionUpdateMargin          ActionType = "update_margin"
)

// Action is a tagged transition request. Only the fields relevant to Type are read.
type Action struct {
	Type ActionType `json:"type"`

	// update_details
	ClientName string `json:"clientName,omitempty"`
	WebName    string `json:"webName,omitempty"`

	// set_service_type
	ServiceType ServiceType `json:"serviceType,omitempty"`

	// set_package, toggle_standard_service, toggle_plan_service, remove_custom_service.
	// An empty ServiceID on set_package clears the package.
	ServiceID string `json:"serviceId,omitempty"`

	// set_plan. Empty clears the plan.
	PlanID string `json:"planId,omitempty"`

	// add_custom_service
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price,omitempty"`

	// update_margin
	Margin *int `json:"margin,omitempty"`
}

// CustomServiceIDPrefix prefixes the generated ids of ad hoc services.
const CustomServiceIDPrefix = "custom-"

// NewCustomService builds an ad hoc service with the given generated id.
func NewCustomService(id, name string, price float64) Service {
	return Service{
		ID:          id,
		Name:        name,
		Price:       price,
		Description: CustomServiceDescription,
	}
}

// Reducer applies actions to a selection, resolving catalog ids.
type Reducer struct {
	catalog *Catalog
	newID   func() string
}

// NewReducer creates a reducer bound to a catalog snapshot.
// newID generates the unique suffix for custom service ids.
func NewReducer(catalog *Catalog, newID func() string) *Reducer {
	if catalog == nil {
		catalog = EmptyCatalog()
	}
	return &Reducer{catalog: catalog, newID: newID}
}

// Reduce returns the state that results from applying a to s.
// s is never modified; on error s is returned unchanged alongside the error.
func (r *Reducer) Reduce(s Selection, a Action) (Selection, error) {
	switch a.Type {
	case ActionReset:
		return s.Reset(), nil

	case ActionUpdateDetails:
		return s.UpdateDetails(a.ClientName, a.WebName), nil

	case ActionSetServiceType:
		if !a.ServiceType.IsValid() {
			return s, ErrUnknownServiceType
		}
		return s.SetServiceType(a.ServiceType), nil

	case ActionSetPackage:
		if a.ServiceID == "" {
			return s.SetPackage(nil), nil
		}
		svc, cat, ok := r.catalog.FindService(a.ServiceID)
		if !ok {
			return s, ErrServiceNotFound
		}
		if !cat.IsExclusive {
			return s, ErrNotAPackage
		}
		return s.SetPackage(&svc), nil

	case ActionSetPlan:
		if a.PlanID == "" {
			return s.SetPlan(nil), nil
		}
		plan, ok := r.catalog.FindPlan(a.PlanID)
		if !ok {
			return s, ErrPlanNotFound
		}
		return s.SetPlan(&plan), nil

	case ActionToggleStandardService:
		svc, err := r.standardService(a.ServiceID)
		if err != nil {
			return s, err
		}
		return s.ToggleStandardService(svc), nil

	case ActionTogglePlanService:
		svc, err := r.standardService(a.ServiceID)
		if err != nil {
			return s, err
		}
		return s.TogglePlanService(svc), nil

	case ActionAddCustomService:
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return s, ErrCustomNameRequired
		}
		if a.Price < 0 {
			return s, ErrCustomPriceInvalid
		}
		return s.AddCustomService(NewCustomService(CustomServiceIDPrefix+r.newID(), name, a.Price)), nil

	case ActionRemoveCustomService:
		return s.RemoveCustomService(a.ServiceID), nil

	case ActionUpdateMargin:
		if a.Margin == nil {
			return s, NewValidationError("margin", "margin is required")
		}
		return s.UpdateMargin(*a.Margin), nil

	default:
		return s, ErrUnknownAction
	}
}

// standardService resolves a non-exclusive catalog service.
func (r *Reducer) standardService(id string) (Service, error) {
	svc, cat, ok := r.catalog.FindService(id)
	if !ok {
		return Service{}, ErrServiceNotFound
	}
	if cat.IsExclusive {
		return Service{}, ErrNotAStandard
	}
	return svc, nil
}

// ApplySuggestion feeds one recommended service back into s. Existing ids
// set the package or plan, or add a service to the list that fits the
// current service type; new services become custom services.
// Services already selected are left as they are.
func (r *Reducer) ApplySuggestion(s Selection, rec RecommendedService) (Selection, error) {
	if rec.New() {
		price := 0.0
		if rec.Price != nil {
			price = *rec.Price
		}
		return r.Reduce(s, Action{Type: ActionAddCustomService, Name: rec.Name, Price: price})
	}

	if plan, ok := r.catalog.FindPlan(rec.ID); ok {
		if s.Plan != nil && s.Plan.ID == plan.ID {
			return s, nil
		}
		return s.SetPlan(&plan), nil
	}

	svc, cat, ok := r.catalog.FindService(rec.ID)
	if !ok {
		return s, ErrServiceNotFound
	}

	switch {
	case cat.IsExclusive:
		if s.Package != nil && s.Package.ID == svc.ID {
			return s, nil
		}
		return s.SetPackage(&svc), nil
	case s.ServiceType == ServiceTypeMensual:
		if s.HasPlanService(svc.ID) {
			return s, nil
		}
		return s.TogglePlanService(svc), nil
	default:
		if s.HasStandardService(svc.ID) {
			return s, nil
		}
		return s.ToggleStandardService(svc), nil
	}
}
