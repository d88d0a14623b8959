// Package catalog holds the bookable service list: names, categories, and
// starting prices. The catalog is static configuration, not storage; the
// booking flow and the assistant both read from it.
package catalog

import "strings"

// Service is a single bookable item.
type Service struct {
	Category  string
	Name      string
	PriceFrom string
}

// Catalog is an ordered list of services. Order matters: free-text booking
// intent detection picks the first matching service in catalog order.
type Catalog struct {
	services []Service
	byName   map[string]int
}

// New builds a catalog from the given services, preserving order.
func New(services []Service) *Catalog {
	byName := make(map[string]int, len(services))
	for i, svc := range services {
		byName[strings.ToLower(svc.Name)] = i
	}
	return &Catalog{services: services, byName: byName}
}

// Default returns the salon's standing service list.
func Default() *Catalog {
	return New([]Service{
		{Category: "Manicure", Name: "Gel polish removal", PriceFrom: "133 P"},
		{Category: "Manicure", Name: "Manicure", PriceFrom: "733 P"},
		{Category: "Manicure", Name: "Gel polish application", PriceFrom: "800 P"},
		{Category: "Manicure", Name: "Gel application", PriceFrom: "1,700 P"},
		{Category: "Manicure", Name: "Nail polish application", PriceFrom: "500 P"},
		{Category: "Manicure", Name: "Nail polish removal", PriceFrom: "50 P"},
		{Category: "Manicure", Name: "Children's manicure", PriceFrom: "1,500 P"},
		{Category: "Manicure", Name: "One-hour manicure", PriceFrom: "2,600 P"},
		{Category: "Manicure", Name: "Men's manicure", PriceFrom: "1,200 P"},
		{Category: "Design", Name: "Design 500", PriceFrom: "500 P"},
		{Category: "Design", Name: "Design 1000", PriceFrom: "1,000 P"},
		{Category: "Design", Name: "Design 300", PriceFrom: "300 P"},
		{Category: "Design", Name: "Artistic painting", PriceFrom: "150 P"},
	})
}

// Services returns all services in catalog order.
func (c *Catalog) Services() []Service {
	return c.services
}

// Names returns the service names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.services))
	for i, svc := range c.services {
		names[i] = svc.Name
	}
	return names
}

// Get looks up a service by name, case-insensitively.
func (c *Catalog) Get(name string) (Service, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Service{}, false
	}
	return c.services[i], true
}

// Detect scans free-form text for a service name and returns the first match
// in catalog order. The match is a case-insensitive substring check, which is
// how booking intent is recognized in generated assistant replies.
func (c *Catalog) Detect(text string) (Service, bool) {
	lowered := strings.ToLower(text)
	for _, svc := range c.services {
		if strings.Contains(lowered, strings.ToLower(svc.Name)) {
			return svc, true
		}
	}
	return Service{}, false
}
