// Package validation turns raw form input into a comparison request.
package validation

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"imagery-compare/internal/geo"
)

// Field names used as keys in FieldErrors
const (
	FieldLatitude   = "latitude"
	FieldLongitude  = "longitude"
	FieldDate1      = "date1"
	FieldDate2      = "date2"
	FieldCloudCover = "cloudCover"
)

const (
	MinCloudCover     = 1
	MaxCloudCover     = 100
	DefaultCloudCover = 20
)

// RawInput is the form state exactly as the user typed it
type RawInput struct {
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
	Date1      string `json:"date1"`
	Date2      string `json:"date2"`
	CloudCover int    `json:"cloudCover"`
}

// ComparisonRequest is a validated request for two imagery snapshots
type ComparisonRequest struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	Date1      string         `json:"date1"`
	Date2      string         `json:"date2"`
	CloudCover int            `json:"cloudCover"`
}

// FieldErrors maps a field name to a human-readable message
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// Validate checks every field independently and collects all errors.
// date1 after date2 is accepted.
func Validate(in RawInput) (ComparisonRequest, FieldErrors) {
	errs := FieldErrors{}

	lat, ok := ParseAxis(in.Latitude)
	switch {
	case !ok:
		errs[FieldLatitude] = "Latitude is required and must be a number."
	case !geo.LatitudeInRange(lat):
		errs[FieldLatitude] = "Latitude must be between -90 and 90."
	}

	lon, ok := ParseAxis(in.Longitude)
	switch {
	case !ok:
		errs[FieldLongitude] = "Longitude is required and must be a number."
	case !geo.LongitudeInRange(lon):
		errs[FieldLongitude] = "Longitude must be between -180 and 180."
	}

	if strings.TrimSpace(in.Date1) == "" {
		errs[FieldDate1] = "Date 1 is required."
	}
	if strings.TrimSpace(in.Date2) == "" {
		errs[FieldDate2] = "Date 2 is required."
	}

	if in.CloudCover < MinCloudCover || in.CloudCover > MaxCloudCover {
		errs[FieldCloudCover] = "Cloud cover must be between 1 and 100."
	}

	if len(errs) > 0 {
		return ComparisonRequest{}, errs
	}

	return ComparisonRequest{
		Coordinate: geo.Coordinate{Latitude: lat, Longitude: lon},
		Date1:      strings.TrimSpace(in.Date1),
		Date2:      strings.TrimSpace(in.Date2),
		CloudCover: in.CloudCover,
	}, nil
}

// ParseAxis parses one coordinate text field. ok is false for empty, non-numeric
// or non-finite input; range is not checked.
func ParseAxis(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseCoordinate parses both text fields and succeeds only when both are in range
func ParseCoordinate(latText, lonText string) (geo.Coordinate, bool) {
	lat, ok := ParseAxis(latText)
	if !ok {
		return geo.Coordinate{}, false
	}
	lon, ok := ParseAxis(lonText)
	if !ok {
		return geo.Coordinate{}, false
	}
	c := geo.Coordinate{Latitude: lat, Longitude: lon}
	return c, c.Valid()
}

// FormatAxis renders a coordinate axis with DisplayPrecision fixed digits
func FormatAxis(v float64) string {
	return strconv.FormatFloat(v, 'f', geo.DisplayPrecision, 64)
}
