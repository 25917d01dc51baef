package ai

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jkindrix/zenquote/internal/domain"
)

var replyValidator = newReplyValidator()

func newReplyValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateRecommendedService, domain.RecommendedService{})
	return v
}

// validateRecommendedService requires invented services to be sellable.
func validateRecommendedService(sl validator.StructLevel) {
	s := sl.Current().Interface().(domain.RecommendedService)
	if !s.New() {
		return
	}
	if strings.TrimSpace(s.Description) == "" {
		sl.ReportError(s.Description, "Description", "description", "required_if_new", "")
	}
	if s.Price == nil || *s.Price < 0 {
		sl.ReportError(s.Price, "Price", "price", "gte0_if_new", "")
	}
}

// ParseReply decides whether text is a structured recommendation or plain text.
// Text that is not a schema-valid recommendation is returned as plain text.
// Existing services are resolved against catalog; unknown ids are dropped.
func ParseReply(text string, catalog *domain.Catalog) domain.Reply {
	plain := domain.Reply{Kind: domain.ReplyText, Text: text}

	body := strings.TrimSpace(text)
	if !strings.HasPrefix(body, "{") {
		return plain
	}

	var rec domain.Recommendation
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return plain
	}
	if err := replyValidator.Struct(rec); err != nil {
		return plain
	}

	resolved := make([]domain.RecommendedService, 0, len(rec.Services))
	for _, s := range rec.Services {
		if s.New() {
			resolved = append(resolved, s)
			continue
		}
		if r, ok := resolveExisting(s, catalog); ok {
			resolved = append(resolved, r)
		}
	}
	rec.Services = resolved

	return domain.Reply{
		Kind:           domain.ReplyStructured,
		Recommendation: &rec,
		Text:           text,
	}
}

func resolveExisting(s domain.RecommendedService, catalog *domain.Catalog) (domain.RecommendedService, bool) {
	if svc, _, ok := catalog.FindService(s.ID); ok {
		price := svc.Price
		s.Name = svc.Name
		s.Description = svc.Description
		s.Price = &price
		return s, true
	}
	if plan, ok := catalog.FindPlan(s.ID); ok {
		price := plan.Price
		s.Name = plan.Name
		s.Description = plan.Description
		s.Price = &price
		return s, true
	}
	return s, false
}
