package http

import (
	"bytes"
	"encoding/json"
	"time"

	masterdataapp "site-registry/internal/masterdata/application"
	masterdata "site-registry/internal/masterdata/domain"
)

type siteCreateRequest struct {
	Name                    string   `json:"name" validate:"required,max=255"`
	InstallationDate        string   `json:"installation_date" validate:"required,iso_date"`
	MaxPowerMegawatt        *float64 `json:"max_power_megawatt" validate:"required"`
	MinPowerMegawatt        *float64 `json:"min_power_megawatt" validate:"required"`
	UsefulEnergyAt1Megawatt *float64 `json:"useful_energy_at_1_megawatt"`
	Efficiency              *float64 `json:"efficiency"`
	Country                 string   `json:"country" validate:"required,country"`
	Groups                  []int64  `json:"groups" validate:"omitempty,dive,gt=0"`
}

func (req siteCreateRequest) toSite() masterdata.Site {
	date, _ := time.Parse(masterdata.DateLayout, req.InstallationDate)
	country, _ := masterdata.ParseCountry(req.Country)
	return masterdata.Site{
		Name:                    req.Name,
		InstallationDate:        date,
		MaxPowerMegawatt:        *req.MaxPowerMegawatt,
		MinPowerMegawatt:        *req.MinPowerMegawatt,
		UsefulEnergyAt1Megawatt: req.UsefulEnergyAt1Megawatt,
		Efficiency:              req.Efficiency,
		Country:                 country,
		GroupIDs:                req.Groups,
	}
}

type sitePatchRequest struct {
	Name                    *string       `json:"name" validate:"omitempty,max=255"`
	InstallationDate        *string       `json:"installation_date" validate:"omitempty,iso_date"`
	MaxPowerMegawatt        *float64      `json:"max_power_megawatt"`
	MinPowerMegawatt        *float64      `json:"min_power_megawatt"`
	UsefulEnergyAt1Megawatt optionalFloat `json:"useful_energy_at_1_megawatt"`
	Efficiency              optionalFloat `json:"efficiency"`
	Country                 *string       `json:"country" validate:"omitempty,country"`
	Groups                  *[]int64      `json:"groups"`
}

// optionalFloat tells an absent key apart from an explicit null.
type optionalFloat struct {
	Set   bool
	Value *float64
}

func (o *optionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o optionalFloat) toNullable() masterdataapp.NullableFloat {
	return masterdataapp.NullableFloat{Set: o.Set, Value: o.Value}
}

func (req sitePatchRequest) toPatch() masterdataapp.SitePatch {
	patch := masterdataapp.SitePatch{
		Name:                    req.Name,
		MaxPowerMegawatt:        req.MaxPowerMegawatt,
		MinPowerMegawatt:        req.MinPowerMegawatt,
		UsefulEnergyAt1Megawatt: req.UsefulEnergyAt1Megawatt.toNullable(),
		Efficiency:              req.Efficiency.toNullable(),
		GroupIDs:                req.Groups,
	}
	if req.InstallationDate != nil {
		date, _ := time.Parse(masterdata.DateLayout, *req.InstallationDate)
		patch.InstallationDate = &date
	}
	if req.Country != nil {
		country, _ := masterdata.ParseCountry(*req.Country)
		patch.Country = &country
	}
	return patch
}

type groupCreateRequest struct {
	ID   int64  `json:"id" validate:"gte=0"`
	Name string `json:"name" validate:"required,max=255"`
	Type string `json:"type" validate:"required,group_type"`
}

func (req groupCreateRequest) toGroup() masterdata.Group {
	typ, _ := masterdata.ParseGroupType(req.Type)
	return masterdata.Group{ID: req.ID, Name: req.Name, Type: typ}
}

type groupPatchRequest struct {
	Name *string `json:"name" validate:"omitempty,max=255"`
	Type *string `json:"type" validate:"omitempty,group_type"`
}

func (req groupPatchRequest) toPatch() masterdataapp.GroupPatch {
	patch := masterdataapp.GroupPatch{Name: req.Name}
	if req.Type != nil {
		typ, _ := masterdata.ParseGroupType(*req.Type)
		patch.Type = &typ
	}
	return patch
}

type groupResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type siteResponse struct {
	ID                      int64           `json:"id"`
	Name                    string          `json:"name"`
	InstallationDate        string          `json:"installation_date"`
	MaxPowerMegawatt        float64         `json:"max_power_megawatt"`
	MinPowerMegawatt        float64         `json:"min_power_megawatt"`
	UsefulEnergyAt1Megawatt *float64        `json:"useful_energy_at_1_megawatt"`
	Efficiency              *float64        `json:"efficiency"`
	Country                 string          `json:"country"`
	Groups                  []groupResponse `json:"groups"`
}

type bulkCreateResponse struct {
	Message string          `json:"message"`
	Created []groupResponse `json:"created"`
	Skipped []int64         `json:"skipped"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toGroupResponse(group masterdata.Group) groupResponse {
	return groupResponse{ID: group.ID, Name: group.Name, Type: string(group.Type)}
}

func toGroupResponses(groups []masterdata.Group) []groupResponse {
	out := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, toGroupResponse(group))
	}
	return out
}

func toSiteResponse(site masterdata.Site) siteResponse {
	return siteResponse{
		ID:                      site.ID,
		Name:                    site.Name,
		InstallationDate:        site.InstallationDate.Format(masterdata.DateLayout),
		MaxPowerMegawatt:        site.MaxPowerMegawatt,
		MinPowerMegawatt:        site.MinPowerMegawatt,
		UsefulEnergyAt1Megawatt: site.UsefulEnergyAt1Megawatt,
		Efficiency:              site.Efficiency,
		Country:                 string(site.Country),
		Groups:                  toGroupResponses(site.Groups),
	}
}

func toSiteResponses(sites []masterdata.Site) []siteResponse {
	out := make([]siteResponse, 0, len(sites))
	for _, site := range sites {
		out = append(out, toSiteResponse(site))
	}
	return out
}
