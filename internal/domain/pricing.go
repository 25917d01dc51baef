package domain

import "fmt"

// Combo discount rules for itemized (no package, no plan) proposals.
const (
	ComboDiscountRate      = 0.10
	ComboDiscountThreshold = 3
)

// ItemOrigin tags where a line in the summary came from.
type ItemOrigin string

const (
	OriginPackage     ItemOrigin = "package"
	OriginPlan        ItemOrigin = "plan"
	OriginPlanService ItemOrigin = "plan-service"
	OriginStandard    ItemOrigin = "standard"
	OriginCustom      ItemOrigin = "custom"
)

// LineItem is one selected entry in the itemized summary.
type LineItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Origin    ItemOrigin `json:"type"`
	PointCost int        `json:"pointCost,omitempty"`
}

// PointUsage describes plan budget consumption.
type PointUsage struct {
	Used      int `json:"pointsUsed"`
	Budget    int `json:"totalPointsInBudget"`
	Remaining int `json:"remainingPoints"`
}

// Quote is the pricing engine's output for a selection.
type Quote struct {
	ProductionCost        float64     `json:"totalDev"`
	ClientPrice           float64     `json:"totalClient"`
	Margin                int         `json:"margin"`
	MarginValid           bool        `json:"marginValid"`
	StandardSubtotal      float64     `json:"standardSubtotal"`
	CustomSubtotal        float64     `json:"customSubtotal"`
	Discount              float64     `json:"discount"`
	DiscountApplied       bool        `json:"discountApplied"`
	ServicesUntilDiscount int         `json:"servicesUntilDiscount"`
	Feedback              string      `json:"feedback"`
	Items                 []LineItem  `json:"items"`
	Points                *PointUsage `json:"points,omitempty"`
}

// ValidMargin reports whether margin can be priced.
func ValidMargin(margin int) bool {
	return margin >= 0 && margin < 100
}

// ClientPrice converts a production cost into the client-facing price.
// Margin is a share of the client price, not a markup on cost.
func ClientPrice(cost float64, margin int) (float64, error) {
	if !ValidMargin(margin) {
		return 0, ErrMarginOutOfRange
	}
	return cost / (1 - float64(margin)/100), nil
}

// Price computes production cost, combo discount and client price for s.
func Price(s Selection) Quote {
	q := Quote{
		Margin: s.Margin,
		Items:  Summarize(s),
	}

	switch {
	case s.Package != nil:
		q.ProductionCost = s.Package.Price
		q.Feedback = fmt.Sprintf("Costo fijo de paquete: $%.2f", q.ProductionCost)

	case s.Plan != nil:
		// Plan services consume points, not money.
		q.ProductionCost = s.Plan.Price
		q.Feedback = fmt.Sprintf("Costo fijo de plan: $%.2f", q.ProductionCost)
		q.Points = &PointUsage{
			Used:      s.PointsUsed(),
			Budget:    s.Plan.Points,
			Remaining: s.RemainingPoints(),
		}

	default:
		q.StandardSubtotal = sumPrices(s.StandardServices)
		q.CustomSubtotal = sumPrices(s.CustomServices)
		q.ProductionCost = q.StandardSubtotal + q.CustomSubtotal

		if n := len(s.StandardServices); n >= ComboDiscountThreshold {
			q.Discount = q.StandardSubtotal * ComboDiscountRate
			q.DiscountApplied = true
			q.ProductionCost -= q.Discount
			q.Feedback = fmt.Sprintf("Descuento del 10%% aplicado! (Ahorro: $%.2f)", q.Discount)
		} else {
			q.ServicesUntilDiscount = ComboDiscountThreshold - n
			q.Feedback = fmt.Sprintf("Añade %d servicio(s) más para un 10%% de descuento.", q.ServicesUntilDiscount)
		}
	}

	if price, err := ClientPrice(q.ProductionCost, s.Margin); err == nil {
		q.ClientPrice = price
		q.MarginValid = true
	}

	return q
}

// Summarize flattens the selection into tagged line items.
func Summarize(s Selection) []LineItem {
	if s.Package != nil {
		return []LineItem{{ID: s.Package.ID, Name: s.Package.Name, Price: s.Package.Price, Origin: OriginPackage}}
	}
	if s.Plan != nil {
		items := make([]LineItem, 0, len(s.PlanServices)+1)
		items = append(items, LineItem{ID: s.Plan.ID, Name: s.Plan.Name, Price: s.Plan.Price, Origin: OriginPlan})
		for _, svc := range s.PlanServices {
			items = append(items, lineItem(svc, OriginPlanService))
		}
		return items
	}

	items := make([]LineItem, 0, len(s.StandardServices)+len(s.CustomServices))
	for _, svc := range s.StandardServices {
		items = append(items, lineItem(svc, OriginStandard))
	}
	for _, svc := range s.CustomServices {
		items = append(items, lineItem(svc, OriginCustom))
	}
	return items
}

func lineItem(svc Service, origin ItemOrigin) LineItem {
	return LineItem{
		ID:        svc.ID,
		Name:      svc.Name,
		Price:     svc.Price,
		Origin:    origin,
		PointCost: svc.PointCost,
	}
}

func sumPrices(list []Service) float64 {
	total := 0.0
	for _, s := range list {
		total += s.Price
	}
	return total
}
