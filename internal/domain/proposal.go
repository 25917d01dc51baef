package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlanSnapshot freezes the chosen plan and the budget it consumed.
type PlanSnapshot struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Price               float64    `json:"price"`
	SelectedServiceIDs  []string   `json:"selectedServiceIds"`
	Services            []LineItem `json:"services"`
	PointsUsed          int        `json:"pointsUsed"`
	TotalPointsInBudget int        `json:"totalPointsInBudget"`
	RemainingPoints     int        `json:"remainingPoints"`
}

// Proposal is a saved, immutable snapshot of a selection and its totals.
type Proposal struct {
	ID          uuid.UUID     `json:"id"`
	CreatedAt   time.Time     `json:"createdAt"`
	ClientName  string        `json:"clientName"`
	WebName     string        `json:"webName"`
	Type        ServiceType   `json:"type"`
	Margin      int           `json:"margin"`
	TotalDev    float64       `json:"totalDev"`
	TotalClient float64       `json:"totalClient"`
	Package     *LineItem     `json:"package"`
	Plan        *PlanSnapshot `json:"plan"`
	Services    []LineItem    `json:"services"`
}

// NewProposal freezes s and its quote. The margin must be priceable.
func NewProposal(s Selection, q Quote, now time.Time) (*Proposal, error) {
	if !q.MarginValid {
		return nil, ErrMarginOutOfRange
	}

	p := &Proposal{
		ID:          uuid.New(),
		CreatedAt:   now,
		ClientName:  s.ClientName,
		WebName:     s.WebName,
		Type:        s.ServiceType,
		Margin:      s.Margin,
		TotalDev:    q.ProductionCost,
		TotalClient: q.ClientPrice,
		Services:    []LineItem{},
	}

	switch {
	case s.Package != nil:
		item := lineItem(*s.Package, OriginPackage)
		p.Package = &item
	case s.Plan != nil:
		snap := &PlanSnapshot{
			ID:                  s.Plan.ID,
			Name:                s.Plan.Name,
			Price:               s.Plan.Price,
			SelectedServiceIDs:  make([]string, 0, len(s.PlanServices)),
			Services:            make([]LineItem, 0, len(s.PlanServices)),
			PointsUsed:          s.PointsUsed(),
			TotalPointsInBudget: s.Plan.Points,
			RemainingPoints:     s.RemainingPoints(),
		}
		for _, svc := range s.PlanServices {
			snap.SelectedServiceIDs = append(snap.SelectedServiceIDs, svc.ID)
			snap.Services = append(snap.Services, lineItem(svc, OriginPlanService))
		}
		p.Plan = snap
	default:
		for _, svc := range s.StandardServices {
			p.Services = append(p.Services, lineItem(svc, OriginStandard))
		}
		for _, svc := range s.CustomServices {
			p.Services = append(p.Services, lineItem(svc, OriginCustom))
		}
	}

	return p, nil
}

// Profit returns what the reseller keeps on this proposal.
func (p *Proposal) Profit() float64 {
	return p.TotalClient - p.TotalDev
}

// Totals aggregates stored proposals.
type Totals struct {
	Count       int     `json:"count"`
	TotalDev    float64 `json:"totalDev"`
	TotalClient float64 `json:"totalClient"`
	Profit      float64 `json:"profit"`
}

// Aggregate sums production cost and client price across proposals.
func Aggregate(proposals []Proposal) Totals {
	t := Totals{Count: len(proposals)}
	for _, p := range proposals {
		t.TotalDev += p.TotalDev
		t.TotalClient += p.TotalClient
	}
	t.Profit = t.TotalClient - t.TotalDev
	return t
}
