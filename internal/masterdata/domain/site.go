package masterdata

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire and storage layout of installation dates.
const DateLayout = "2006-01-02"

// Country identifies where a site is installed.
type Country string

const (
	CountryFrance Country = "FR"
	CountryItaly  Country = "IT"
)

// ParseCountry normalizes a country code.
func ParseCountry(value string) (Country, bool) {
	switch Country(strings.ToUpper(strings.TrimSpace(value))) {
	case CountryFrance:
		return CountryFrance, true
	case CountryItaly:
		return CountryItaly, true
	default:
		return "", false
	}
}

// Site represents a physical installation.
type Site struct {
	ID                      int64
	Name                    string
	InstallationDate        time.Time
	MaxPowerMegawatt        float64
	MinPowerMegawatt        float64
	UsefulEnergyAt1Megawatt *float64
	Efficiency              *float64
	Country                 Country
	GroupIDs                []int64
	Groups                  []Group
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Validate checks site invariants.
func (s Site) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("site: empty name")
	}
	if s.InstallationDate.IsZero() {
		return errors.New("site: empty installation date")
	}
	if _, ok := ParseCountry(string(s.Country)); !ok {
		return errors.New("site: unknown country " + string(s.Country))
	}
	return nil
}

// Clone returns a deep copy.
func (s Site) Clone() Site {
	out := s
	if s.UsefulEnergyAt1Megawatt != nil {
		v := *s.UsefulEnergyAt1Megawatt
		out.UsefulEnergyAt1Megawatt = &v
	}
	if s.Efficiency != nil {
		v := *s.Efficiency
		out.Efficiency = &v
	}
	out.GroupIDs = append([]int64(nil), s.GroupIDs...)
	out.Groups = append([]Group(nil), s.Groups...)
	return out
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
