package service

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

// InboundEditableFields lists the fields a reviewer may change on inbound shipments.
var InboundEditableFields = []string{
	"reference", "etd_date", "tracking_or_awb", "incoterms", "mode", "flight_vessel",
	"origin_country", "destination_country", "brands", "description", "currency",
	"total_value", "country_splits",
}

// OutboundEditableFields lists the fields a reviewer may change on outbound shipments.
var OutboundEditableFields = []string{
	"invoice_number", "date", "flight_vehicle", "mode", "origin", "destination",
	"description", "currency", "value", "fcl_lcl",
}

func inboundField(s *domain.InboundShipment, field string) (any, error) {
	switch field {
	case "reference":
		return s.Reference, nil
	case "etd_date":
		return s.ShipDate, nil
	case "tracking_or_awb":
		return s.TrackingOrAWB, nil
	case "incoterms":
		return s.Incoterms, nil
	case "mode":
		return string(s.Mode), nil
	case "flight_vessel":
		return s.FlightVessel, nil
	case "origin_country":
		return s.OriginCountry, nil
	case "destination_country":
		return s.DestinationCountry, nil
	case "brands":
		return slices.Clone(s.Brands), nil
	case "description":
		return s.Description, nil
	case "currency":
		return s.Currency, nil
	case "total_value":
		return s.TotalValue, nil
	case "country_splits":
		return formatSplits(s.Splits), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
}

func setInboundField(s *domain.InboundShipment, field string, v any) error {
	var err error
	switch field {
	case "reference":
		s.Reference, err = toString(field, v)
	case "etd_date":
		s.ShipDate, err = toDate(field, v)
	case "tracking_or_awb":
		s.TrackingOrAWB, err = toString(field, v)
	case "incoterms":
		s.Incoterms, err = toUpper(field, v)
	case "mode":
		s.Mode, err = toMode(field, v)
	case "flight_vessel":
		s.FlightVessel, err = toString(field, v)
	case "origin_country":
		s.OriginCountry, err = toString(field, v)
	case "destination_country":
		s.DestinationCountry, err = toString(field, v)
	case "brands":
		s.Brands, err = toList(field, v)
	case "description":
		s.Description, err = toString(field, v)
	case "currency":
		s.Currency, err = toUpper(field, v)
	case "total_value":
		s.TotalValue, err = toNumber(field, v)
	case "country_splits":
		s.Splits, err = toSplits(field, v)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}
	return err
}

func outboundField(s *domain.OutboundShipment, field string) (any, error) {
	switch field {
	case "invoice_number":
		return s.InvoiceNumber, nil
	case "date":
		return s.Date, nil
	case "flight_vehicle":
		return s.FlightVehicle, nil
	case "mode":
		return string(s.Mode), nil
	case "origin":
		return s.Origin, nil
	case "destination":
		return s.Destination, nil
	case "description":
		return s.Description, nil
	case "currency":
		return s.Currency, nil
	case "value":
		return s.Value, nil
	case "fcl_lcl":
		return s.FCLLCL, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
}

func setOutboundField(s *domain.OutboundShipment, field string, v any) error {
	var err error
	switch field {
	case "invoice_number":
		s.InvoiceNumber, err = toString(field, v)
	case "date":
		s.Date, err = toDate(field, v)
	case "flight_vehicle":
		s.FlightVehicle, err = toString(field, v)
	case "mode":
		s.Mode, err = toMode(field, v)
	case "origin":
		s.Origin, err = toString(field, v)
	case "destination":
		s.Destination, err = toString(field, v)
	case "description":
		s.Description, err = toString(field, v)
	case "currency":
		s.Currency, err = toUpper(field, v)
	case "value":
		s.Value, err = toNumber(field, v)
	case "fcl_lcl":
		s.FCLLCL, err = toUpper(field, v)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownField, field)
	}
	return err
}

func invalid(field string, v any) error {
	return fmt.Errorf("%w: %s=%v", domain.ErrInvalidFieldValue, field, v)
}

func toString(field string, v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", invalid(field, v)
}

func toUpper(field string, v any) (string, error) {
	s, err := toString(field, v)
	return strings.ToUpper(s), err
}

func toMode(field string, v any) (domain.TransportMode, error) {
	switch t := v.(type) {
	case domain.TransportMode:
		return t, nil
	case string:
		return domain.ParseTransportMode(t), nil
	}
	return domain.TransportModeUnknown, invalid(field, v)
}

func toDate(field string, v any) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &t, nil
	case *time.Time:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		d, ok := normalize.ParseDate(t)
		if !ok {
			return nil, invalid(field, v)
		}
		return &d, nil
	}
	return nil, invalid(field, v)
}

func toNumber(field string, v any) (*float64, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &t, nil
	case *float64:
		return t, nil
	case int:
		f := float64(t)
		return &f, nil
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if cleaned == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil, invalid(field, v)
		}
		return &f, nil
	}
	return nil, invalid(field, v)
}

// toList accepts a list or a comma-separated string.
func toList(field string, v any) ([]string, error) {
	var raw []string
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(field, v)
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(t, ",")
	default:
		return nil, invalid(field, v)
	}
	out := []string{}
	for _, s := range raw {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func toSplits(field string, v any) (map[string]float64, error) {
	switch t := v.(type) {
	case nil:
		return map[string]float64{}, nil
	case map[string]float64:
		return maps.Clone(t), nil
	case map[string]any:
		out := make(map[string]float64, len(t))
		for k, raw := range t {
			f, err := toNumber(field, raw)
			if err != nil || f == nil {
				return nil, invalid(field, v)
			}
			out[k] = *f
		}
		return out, nil
	}
	return nil, invalid(field, v)
}

// formatSplits renders splits in key order for audit entries.
func formatSplits(splits map[string]float64) string {
	parts := make([]string, 0, len(splits))
	for _, k := range slices.Sorted(maps.Keys(splits)) {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, splits[k]))
	}
	return strings.Join(parts, ", ")
}

func bytesReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
