package validator

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

const (
	splitEpsilon     = 0.01
	minCourierDigits = 10
)

// InboundValidators returns the built-in inbound rules. knownBrands and validCurrencies
// enable the reference-data checks when non-empty.
func InboundValidators(knownBrands, validCurrencies []string) []Validator[domain.InboundShipment] {
	vals := []Validator[domain.InboundShipment]{
		rule("inbound.tracking.required", "Tracking Required", "tracking_or_awb", domain.SeverityWarning,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if strings.TrimSpace(s.TrackingOrAWB) != "" {
					return nil
				}
				return issue("Missing tracking number or AWB", "Check shipping label or air waybill")
			}),
		rule("inbound.ship_date.required", "Ship Date Required", "etd_date", domain.SeverityWarning,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if s.ShipDate != nil {
					return nil
				}
				return issue("Missing ship date", "Check shipping label date field")
			}),
		rule("inbound.courier.flight", "Courier Without Flight", "flight_vessel", domain.SeverityInfo,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if s.Mode != domain.TransportModeCourier || s.FlightVessel == "" {
					return nil
				}
				return issue("COURIER mode typically doesn't have flight info", "Verify mode is correct")
			}),
		rule("inbound.courier.tracking_digits", "Courier Tracking Length", "tracking_or_awb", domain.SeverityWarning,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if s.Mode != domain.TransportModeCourier || s.TrackingOrAWB == "" {
					return nil
				}
				n := normalize.DigitCount(s.TrackingOrAWB)
				if n >= minCourierDigits {
					return nil
				}
				return issue(fmt.Sprintf("Tracking number has only %d digits (expected 12+)", n),
					"Verify this is the tracking number, not a reference code")
			}),
		rule("inbound.air.flight", "Air Flight Required", "flight_vessel", domain.SeverityWarning,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if s.Mode != domain.TransportModeAir || s.FlightVessel != "" {
					return nil
				}
				return issue("AIR mode typically should have flight number", "Check air waybill for flight info")
			}),
		rule("inbound.splits.total", "Country Splits Match Total", "country_splits", domain.SeverityError,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if len(s.Splits) == 0 || s.TotalValue == nil {
					return nil
				}
				sum := s.SplitsSum()
				if math.Abs(sum-*s.TotalValue) <= splitEpsilon {
					return nil
				}
				return issue(fmt.Sprintf("Country splits (%.2f) don't match total (%.2f)", sum, *s.TotalValue),
					"Verify ledger data or manually adjust splits")
			}),
	}

	if len(knownBrands) > 0 {
		vals = append(vals, rule("inbound.brands.known", "Known Brands", "brands", domain.SeverityInfo,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				var unknown []string
				for _, b := range s.Brands {
					if !slices.Contains(knownBrands, strings.ToUpper(b)) {
						unknown = append(unknown, b)
					}
				}
				if len(unknown) == 0 {
					return nil
				}
				return issue(fmt.Sprintf("Unrecognized brand code(s): %s", strings.Join(unknown, ", ")),
					"Check the purchase order or add the brand to the known list")
			}))
	}
	if len(validCurrencies) > 0 {
		vals = append(vals, rule("inbound.currency.valid", "Valid Currency", "currency", domain.SeverityWarning,
			func(s *domain.InboundShipment) *domain.ValidationIssue {
				if s.Currency == "" || slices.Contains(validCurrencies, strings.ToUpper(s.Currency)) {
					return nil
				}
				return issue(fmt.Sprintf("Unexpected currency %q", s.Currency), "Check the invoice currency")
			}))
	}
	return vals
}
