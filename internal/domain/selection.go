package domain

// ServiceType distinguishes one-off projects from monthly retainers.
type ServiceType string

const (
	ServiceTypePuntual ServiceType = "puntual"
	ServiceTypeMensual ServiceType = "mensual"
)

// IsValid reports whether t is a known service type.
func (t ServiceType) IsValid() bool {
	return t == ServiceTypePuntual || t == ServiceTypeMensual
}

// DefaultMargin is the margin percentage a new proposal starts with.
const DefaultMargin = 60

// CustomServiceDescription is the description given to ad hoc services.
const CustomServiceDescription = "Servicio personalizado"

// Selection is the in-progress state of a single proposal.
//
// All transitions use value receivers and return a new Selection; slices are
// copied so a previous state is never modified through a later one.
type Selection struct {
	ClientName       string       `json:"clientName"`
	WebName          string       `json:"webName"`
	ServiceType      ServiceType  `json:"serviceType"`
	Package          *Service     `json:"selectedPackage"`
	Plan             *MonthlyPlan `json:"selectedPlan"`
	StandardServices []Service    `json:"selectedStandardServices"`
	PlanServices     []Service    `json:"selectedPlanServices"`
	CustomServices   []Service    `json:"customServices"`
	Margin           int          `json:"margin"`
}

// NewSelection returns the initial state.
func NewSelection() Selection {
	return Selection{
		ServiceType:      ServiceTypePuntual,
		StandardServices: []Service{},
		PlanServices:     []Service{},
		CustomServices:   []Service{},
		Margin:           DefaultMargin,
	}
}

// Reset returns the initial state.
func (s Selection) Reset() Selection {
	return NewSelection()
}

// UpdateDetails sets the client and project names.
func (s Selection) UpdateDetails(clientName, webName string) Selection {
	next := s.clone()
	next.ClientName = clientName
	next.WebName = webName
	return next
}

// SetServiceType resets everything and keeps only the new service type.
func (s Selection) SetServiceType(t ServiceType) Selection {
	next := NewSelection()
	next.ServiceType = t
	return next
}

// SetPackage selects a package, or clears it when p is nil or already selected.
// Plan and every service set are cleared either way.
func (s Selection) SetPackage(p *Service) Selection {
	next := s.clone()
	next.Plan = nil
	next.StandardServices = []Service{}
	next.PlanServices = []Service{}

	if p == nil || (s.Package != nil && s.Package.ID == p.ID) {
		next.Package = nil
		return next
	}
	pkg := *p
	next.Package = &pkg
	return next
}

// SetPlan selects a monthly plan, or clears it when p is nil or already selected.
// The package and every service set are cleared either way.
func (s Selection) SetPlan(p *MonthlyPlan) Selection {
	next := s.clone()
	next.Package = nil
	next.StandardServices = []Service{}
	next.PlanServices = []Service{}

	if p == nil || (s.Plan != nil && s.Plan.ID == p.ID) {
		next.Plan = nil
		return next
	}
	plan := *p
	next.Plan = &plan
	return next
}

// ToggleStandardService adds svc if absent and removes it if present.
// Any standard selection drops the package and the plan (with its services).
func (s Selection) ToggleStandardService(svc Service) Selection {
	next := s.clone()
	next.Package = nil
	next.Plan = nil
	next.PlanServices = []Service{}
	next.StandardServices = toggleByID(s.StandardServices, svc)
	return next
}

// TogglePlanService adds or removes a service consumed from the plan budget.
// Adds that would overrun the budget, or with no plan selected, are no-ops.
func (s Selection) TogglePlanService(svc Service) Selection {
	if s.Plan == nil {
		return s.clone()
	}
	if !containsID(s.PlanServices, svc.ID) && !s.CanAddPlanService(svc) {
		return s.clone()
	}
	next := s.clone()
	next.PlanServices = toggleByID(s.PlanServices, svc)
	return next
}

// AddCustomService appends an ad hoc service. Duplicate ids are ignored.
func (s Selection) AddCustomService(svc Service) Selection {
	next := s.clone()
	if containsID(next.CustomServices, svc.ID) {
		return next
	}
	next.CustomServices = append(next.CustomServices, svc)
	return next
}

// RemoveCustomService drops the custom service with the given id.
func (s Selection) RemoveCustomService(id string) Selection {
	next := s.clone()
	next.CustomServices = removeByID(s.CustomServices, id)
	return next
}

// UpdateMargin stores the margin percentage as given. No range is enforced
// here; the pricing engine flags values it cannot price.
func (s Selection) UpdateMargin(margin int) Selection {
	next := s.clone()
	next.Margin = margin
	return next
}

// PointsUsed returns the points consumed by the selected plan services.
func (s Selection) PointsUsed() int {
	used := 0
	for _, svc := range s.PlanServices {
		used += svc.PointCost
	}
	return used
}

// RemainingPoints returns the unused plan budget, or 0 with no plan.
func (s Selection) RemainingPoints() int {
	if s.Plan == nil {
		return 0
	}
	return s.Plan.Points - s.PointsUsed()
}

// CanAddPlanService reports whether svc is selectable under the plan budget.
// Already selected services are always selectable (so they can be removed).
func (s Selection) CanAddPlanService(svc Service) bool {
	if s.Plan == nil {
		return false
	}
	if containsID(s.PlanServices, svc.ID) {
		return true
	}
	return svc.PointCost <= s.RemainingPoints()
}

// HasStandardService reports whether a standard service with id is selected.
func (s Selection) HasStandardService(id string) bool {
	return containsID(s.StandardServices, id)
}

// HasPlanService reports whether a plan service with id is selected.
func (s Selection) HasPlanService(id string) bool {
	return containsID(s.PlanServices, id)
}

func (s Selection) clone() Selection {
	next := s
	next.StandardServices = copyServices(s.StandardServices)
	next.PlanServices = copyServices(s.PlanServices)
	next.CustomServices = copyServices(s.CustomServices)
	if s.Package != nil {
		pkg := *s.Package
		next.Package = &pkg
	}
	if s.Plan != nil {
		plan := *s.Plan
		next.Plan = &plan
	}
	return next
}

func copyServices(in []Service) []Service {
	out := make([]Service, len(in))
	copy(out, in)
	return out
}

func containsID(list []Service, id string) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}

func toggleByID(list []Service, svc Service) []Service {
	if containsID(list, svc.ID) {
		return removeByID(list, svc.ID)
	}
	out := copyServices(list)
	return append(out, svc)
}

func removeByID(list []Service, id string) []Service {
	out := make([]Service, 0, len(list))
	for _, s := range list {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}
