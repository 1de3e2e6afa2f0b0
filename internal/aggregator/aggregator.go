// Package aggregator merges the page-level extractions of one physical document into a
// single shipment record.
package aggregator

import (
	"slices"
	"sort"
	"strings"
	"time"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

// field tracks a resolved value together with whether a priority page supplied it.
type field[T any] struct {
	value   *T
	trusted bool
}

// mergeField applies the trust rule to one scalar field. A priority page's value replaces
// anything supplied by non-priority pages, but the first priority value sticks. A
// non-priority value only fills a gap.
func mergeField[T any](current field[T], incoming *T, incomingTrusted bool) field[T] {
	if incoming == nil {
		return current
	}
	switch {
	case current.trusted:
		return current
	case incomingTrusted:
		return field[T]{value: incoming, trusted: true}
	case current.value == nil:
		return field[T]{value: incoming}
	}
	return current
}

// firstValue keeps the first non-nil value from any page.
func firstValue[T any](current, incoming *T) *T {
	if current != nil {
		return current
	}
	return incoming
}

// orderedSet is an insertion-ordered set of non-empty strings.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func (s *orderedSet) add(values ...string) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}

func (s *orderedSet) list() []string {
	return slices.Clone(s.items)
}

// Aggregator merges page extractions. The carrier table is used to infer the transport
// mode when no page stated one.
type Aggregator struct {
	carrierToMode map[string]string
}

// New creates an Aggregator. A nil carrier table disables mode inference.
func New(carrierToMode map[string]string) *Aggregator {
	return &Aggregator{carrierToMode: carrierToMode}
}

// Aggregate merges pages without mode inference.
func Aggregate(pages []domain.ExtractionResult) domain.AggregatedShipment {
	return New(nil).Aggregate(pages)
}

// Aggregate merges pages in order into one record.
func (a *Aggregator) Aggregate(pages []domain.ExtractionResult) domain.AggregatedShipment {
	var (
		tracking field[string]
		shipDate field[time.Time]
		mode     field[domain.TransportMode]
		carrier  field[string]
		origin   field[string]

		flights, vessels, containers, brands, docTypes orderedSet
	)

	out := domain.AggregatedShipment{
		Confidence:   domain.ConfidenceLow,
		RawResponses: []string{},
		Errors:       []string{},
		Warnings:     []string{},
	}

	for i, p := range pages {
		out.RawResponses = append(out.RawResponses, p.RawResponse)
		out.Errors = append(out.Errors, p.Errors...)
		out.Warnings = append(out.Warnings, p.Warnings...)
		docTypes.add(string(p.DocumentType))

		if i == 0 {
			out.Confidence = p.Confidence
		} else {
			out.Confidence = domain.LowerConfidence(out.Confidence, p.Confidence)
		}

		trusted := p.DocumentType.IsPriority()
		tracking = mergeField(tracking, p.TrackingOrAWB, trusted)
		shipDate = mergeField(shipDate, p.ShipDate, trusted)
		if p.Mode != nil && *p.Mode != domain.TransportModeUnknown {
			mode = mergeField(mode, p.Mode, trusted)
		}
		carrier = mergeField(carrier, p.Carrier, trusted)
		origin = mergeField(origin, p.OriginCountry, trusted)

		out.Incoterms = firstValue(out.Incoterms, p.Incoterms)
		out.Currency = firstValue(out.Currency, p.Currency)
		out.TotalValue = firstValue(out.TotalValue, p.TotalValue)
		out.DestinationCountry = firstValue(out.DestinationCountry, p.DestinationCountry)

		flights.add(p.FlightNumbers...)
		if p.VesselInfo != nil {
			vessels.add(*p.VesselInfo)
		}
		if p.ContainerNumber != nil {
			containers.add(*p.ContainerNumber)
		}
		if p.DocumentType == domain.DocumentTypePurchaseOrder {
			brands.add(p.BrandCodes...)
		}
	}

	out.TrackingOrAWB = tracking.value
	out.ShipDate = shipDate.value
	out.Carrier = carrier.value
	out.OriginCountry = origin.value

	out.Mode = domain.TransportModeUnknown
	if mode.value != nil {
		out.Mode = *mode.value
	} else if out.Carrier != nil {
		if m, ok := normalize.DetectModeFromCarrier(*out.Carrier, a.carrierToMode); ok {
			out.Mode = m
		}
	}

	out.FlightNumbers = flights.list()
	out.VesselNames = vessels.list()
	out.ContainerNumbers = containers.list()
	out.BrandCodes = brands.list()
	sort.Strings(out.BrandCodes)
	for _, dt := range docTypes.items {
		out.DocumentTypes = append(out.DocumentTypes, domain.DocumentType(dt))
	}
	out.FlightVessel = FlightVessel(out.Mode, out.FlightNumbers, out.VesselNames, out.ContainerNumbers)
	return out
}

// FlightVessel builds the display string: vessel and container for sea freight, the
// flight list otherwise.
func FlightVessel(mode domain.TransportMode, flights, vessels, containers []string) string {
	if mode == domain.TransportModeSea {
		if len(vessels) == 0 {
			return ""
		}
		s := strings.Join(vessels, " / ")
		if len(containers) > 0 {
			s += " / " + strings.Join(containers, " / ")
		}
		return s
	}
	return strings.Join(flights, " / ")
}
