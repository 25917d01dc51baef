package domain

import (
	"testing"
)

func testPlan(points int) *MonthlyPlan {
	return &MonthlyPlan{ID: "m1", Name: "Plan Crecimiento", Price: 300, Points: points}
}

func svc(id string, price float64, points int) Service {
	return Service{ID: id, Name: "Service " + id, Price: price, PointCost: points}
}

func assertExclusive(t *testing.T, s Selection) {
	t.Helper()
	if s.Package != nil && s.Plan != nil {
		t.Fatal("package and plan selected at the same time")
	}
	if s.Package != nil && len(s.StandardServices) > 0 {
		t.Fatal("package and standard services selected at the same time")
	}
	if s.Plan == nil && len(s.PlanServices) > 0 {
		t.Fatal("plan services selected without a plan")
	}
	if s.Plan != nil && s.PointsUsed() > s.Plan.Points {
		t.Fatalf("points used %d exceed budget %d", s.PointsUsed(), s.Plan.Points)
	}
}

func TestNewSelection(t *testing.T) {
	s := NewSelection()

	if s.ServiceType != ServiceTypePuntual {
		t.Errorf("expected service type %s, got %s", ServiceTypePuntual, s.ServiceType)
	}
	if s.Margin != DefaultMargin {
		t.Errorf("expected margin %d, got %d", DefaultMargin, s.Margin)
	}
	if s.Package != nil || s.Plan != nil {
		t.Error("expected no package or plan")
	}
	if len(s.StandardServices)+len(s.PlanServices)+len(s.CustomServices) != 0 {
		t.Error("expected empty service sets")
	}
}

func TestSelection_SetServiceType_Resets(t *testing.T) {
	s := NewSelection().
		UpdateDetails("ACME", "acme.com").
		UpdateMargin(40).
		ToggleStandardService(svc("s1", 10, 0))

	next := s.SetServiceType(ServiceTypeMensual)

	if next.ServiceType != ServiceTypeMensual {
		t.Errorf("expected service type mensual, got %s", next.ServiceType)
	}
	if next.ClientName != "" || next.WebName != "" {
		t.Error("expected details to be reset")
	}
	if next.Margin != DefaultMargin {
		t.Errorf("expected margin reset to %d, got %d", DefaultMargin, next.Margin)
	}
	if len(next.StandardServices) != 0 {
		t.Error("expected standard services to be cleared")
	}
}

func TestSelection_SetPackage_ClearsOtherGroups(t *testing.T) {
	pkg := svc("p1", 200, 0)

	starts := map[string]Selection{
		"standard": NewSelection().ToggleStandardService(svc("s1", 10, 0)),
		"plan":     NewSelection().SetPlan(testPlan(10)).TogglePlanService(svc("s2", 10, 3)),
		"empty":    NewSelection(),
	}

	for name, start := range starts {
		t.Run(name, func(t *testing.T) {
			next := start.SetPackage(&pkg)

			if next.Package == nil || next.Package.ID != "p1" {
				t.Fatalf("expected package p1, got %v", next.Package)
			}
			if next.Plan != nil {
				t.Error("expected plan to be cleared")
			}
			if len(next.StandardServices) != 0 {
				t.Error("expected standard services to be cleared")
			}
			if len(next.PlanServices) != 0 {
				t.Error("expected plan services to be cleared")
			}
			assertExclusive(t, next)
		})
	}
}

func TestSelection_SetPackage_ToggleOff(t *testing.T) {
	pkg := svc("p1", 200, 0)
	s := NewSelection().SetPackage(&pkg)

	if got := s.SetPackage(&pkg); got.Package != nil {
		t.Error("expected selecting the same package to clear it")
	}
	if got := s.SetPackage(nil); got.Package != nil {
		t.Error("expected nil to clear the package")
	}

	other := svc("p2", 400, 0)
	if got := s.SetPackage(&other); got.Package == nil || got.Package.ID != "p2" {
		t.Error("expected a different package to replace the current one")
	}
}

func TestSelection_SetPlan_ClearsOtherGroups(t *testing.T) {
	pkg := svc("p1", 200, 0)
	s := NewSelection().SetPackage(&pkg)

	next := s.SetPlan(testPlan(10))

	if next.Plan == nil {
		t.Fatal("expected plan to be selected")
	}
	if next.Package != nil {
		t.Error("expected package to be cleared")
	}
	assertExclusive(t, next)

	if off := next.SetPlan(testPlan(10)); off.Plan != nil {
		t.Error("expected selecting the same plan to clear it")
	}
}

func TestSelection_ToggleStandardService(t *testing.T) {
	pkg := svc("p1", 200, 0)
	s := NewSelection().SetPackage(&pkg)

	next := s.ToggleStandardService(svc("s1", 10, 0))

	if next.Package != nil {
		t.Error("expected standard selection to clear the package")
	}
	if !next.HasStandardService("s1") {
		t.Error("expected s1 to be selected")
	}
	assertExclusive(t, next)

	planned := NewSelection().SetPlan(testPlan(10)).TogglePlanService(svc("s2", 0, 2))
	next = planned.ToggleStandardService(svc("s1", 10, 0))
	if next.Plan != nil || len(next.PlanServices) != 0 {
		t.Error("expected standard selection to clear the plan and its services")
	}
}

func TestSelection_ToggleStandardService_Idempotent(t *testing.T) {
	s := NewSelection().
		ToggleStandardService(svc("s1", 10, 0)).
		ToggleStandardService(svc("s2", 20, 0))

	x := svc("s3", 30, 0)
	round := s.ToggleStandardService(x).ToggleStandardService(x)

	if len(round.StandardServices) != len(s.StandardServices) {
		t.Fatalf("expected %d services, got %d", len(s.StandardServices), len(round.StandardServices))
	}
	for i := range s.StandardServices {
		if round.StandardServices[i].ID != s.StandardServices[i].ID {
			t.Errorf("service %d: expected %s, got %s", i, s.StandardServices[i].ID, round.StandardServices[i].ID)
		}
	}
}

func TestSelection_ToggleStandardService_UniqueIDs(t *testing.T) {
	s := NewSelection().ToggleStandardService(svc("s1", 10, 0))
	s = s.ToggleStandardService(svc("s2", 10, 0))
	s = s.ToggleStandardService(svc("s1", 10, 0))
	s = s.ToggleStandardService(svc("s1", 10, 0))

	seen := make(map[string]bool)
	for _, item := range s.StandardServices {
		if seen[item.ID] {
			t.Fatalf("duplicate id %s", item.ID)
		}
		seen[item.ID] = true
	}
}

func TestSelection_TogglePlanService_Budget(t *testing.T) {
	s := NewSelection().SetPlan(testPlan(10))

	s = s.TogglePlanService(svc("a", 0, 4))
	s = s.TogglePlanService(svc("b", 0, 5))
	if s.PointsUsed() != 9 {
		t.Fatalf("expected 9 points used, got %d", s.PointsUsed())
	}

	over := svc("c", 0, 2)
	if s.CanAddPlanService(over) {
		t.Error("expected service c to be disabled")
	}
	s = s.TogglePlanService(over)
	if s.HasPlanService("c") {
		t.Error("expected overrun to be a no-op")
	}
	if s.RemainingPoints() != 1 {
		t.Errorf("expected 1 remaining point, got %d", s.RemainingPoints())
	}

	// Selected services stay toggleable even when the budget is exhausted.
	if !s.CanAddPlanService(svc("b", 0, 5)) {
		t.Error("expected selected service to remain toggleable")
	}
	s = s.TogglePlanService(svc("b", 0, 5))
	if s.HasPlanService("b") {
		t.Error("expected b to be removed")
	}
	s = s.TogglePlanService(over)
	if !s.HasPlanService("c") {
		t.Error("expected c to fit after removing b")
	}
	assertExclusive(t, s)
}

func TestSelection_TogglePlanService_SequenceNeverOverruns(t *testing.T) {
	services := []Service{
		svc("a", 0, 3), svc("b", 0, 4), svc("c", 0, 5),
		svc("d", 0, 1), svc("e", 0, 7), svc("f", 0, 2),
	}
	s := NewSelection().SetPlan(testPlan(10))

	for round := 0; round < 5; round++ {
		for i := range services {
			s = s.TogglePlanService(services[(i*round+i)%len(services)])
			assertExclusive(t, s)
		}
	}
}

func TestSelection_TogglePlanService_NoPlan(t *testing.T) {
	s := NewSelection().TogglePlanService(svc("a", 0, 1))
	if len(s.PlanServices) != 0 {
		t.Error("expected no plan services without a plan")
	}
}

func TestSelection_CustomServices(t *testing.T) {
	s := NewSelection().
		AddCustomService(NewCustomService("custom-1", "Logo", 50)).
		AddCustomService(NewCustomService("custom-2", "Copy", 25)).
		AddCustomService(NewCustomService("custom-1", "Logo", 50))

	if len(s.CustomServices) != 2 {
		t.Fatalf("expected 2 custom services, got %d", len(s.CustomServices))
	}
	if s.CustomServices[0].Description != CustomServiceDescription {
		t.Errorf("expected description %q, got %q", CustomServiceDescription, s.CustomServices[0].Description)
	}

	s = s.RemoveCustomService("custom-1")
	if len(s.CustomServices) != 1 || s.CustomServices[0].ID != "custom-2" {
		t.Errorf("expected only custom-2 to remain, got %v", s.CustomServices)
	}
}

func TestSelection_UpdateMargin_NoClamp(t *testing.T) {
	s := NewSelection().UpdateMargin(150)
	if s.Margin != 150 {
		t.Errorf("expected raw margin 150, got %d", s.Margin)
	}
}

func TestSelection_TransitionsDoNotAlias(t *testing.T) {
	base := NewSelection().ToggleStandardService(svc("s1", 10, 0))
	_ = base.ToggleStandardService(svc("s2", 10, 0))
	_ = base.ToggleStandardService(svc("s1", 10, 0))

	if len(base.StandardServices) != 1 || base.StandardServices[0].ID != "s1" {
		t.Errorf("expected base state to be unchanged, got %v", base.StandardServices)
	}
}
