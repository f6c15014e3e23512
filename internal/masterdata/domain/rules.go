package masterdata

import "time"

// countryRule checks a site candidate against the sites already persisted.
type countryRule func(candidate Site, existing []Site, today time.Time) error

var countryRules = map[Country]countryRule{
	CountryFrance: frenchDailyLimit,
	CountryItaly:  italianWeekendOnly,
}

// FrenchWindowStart is the earliest installation date that blocks a new French site.
// Any FR site installed on or after yesterday counts, so the window spans two calendar days.
func FrenchWindowStart(today time.Time) time.Time {
	return DateOnly(today).AddDate(0, 0, -1)
}

func frenchDailyLimit(_ Site, existing []Site, today time.Time) error {
	since := FrenchWindowStart(today)
	for _, site := range existing {
		if site.Country != CountryFrance {
			continue
		}
		if !DateOnly(site.InstallationDate).Before(since) {
			return ErrFrenchSiteDailyLimit
		}
	}
	return nil
}

func italianWeekendOnly(_ Site, _ []Site, today time.Time) error {
	switch today.Weekday() {
	case time.Saturday, time.Sunday:
		return nil
	default:
		return ErrItalianSiteWeekday
	}
}

// ValidateSiteCreation runs the creation rules in order: name uniqueness, the
// candidate's country rule, then group association. existing must contain every
// persisted site that could conflict; groups holds the referenced groups that were found.
func ValidateSiteCreation(candidate Site, existing []Site, groups []Group, today time.Time) error {
	if err := candidate.Validate(); err != nil {
		return InvalidInput(err)
	}
	if nameTaken(candidate.Name, 0, existing) {
		return ErrDuplicateSiteName
	}
	if rule, ok := countryRules[candidate.Country]; ok {
		if err := rule(candidate, existing, today); err != nil {
			return err
		}
	}
	return ValidateGroupAssociation(candidate.GroupIDs, groups)
}

// ValidateSiteUpdate checks an updated site against other persisted sites.
// Country rules only apply at creation time.
func ValidateSiteUpdate(candidate Site, target Site, existing []Site, groups []Group) error {
	if err := candidate.Validate(); err != nil {
		return InvalidInput(err)
	}
	if nameTaken(candidate.Name, target.ID, existing) {
		return ErrDuplicateSiteName
	}
	return ValidateGroupAssociation(candidate.GroupIDs, groups)
}

// ValidateGroupAssociation rejects unknown groups and groups of type GROUP3.
func ValidateGroupAssociation(ids []int64, groups []Group) error {
	byID := make(map[int64]Group, len(groups))
	for _, group := range groups {
		byID[group.ID] = group
	}
	for _, id := range ids {
		group, ok := byID[id]
		if !ok {
			return UnknownGroupError(id)
		}
		if group.Type == GroupType3 {
			return ErrForbiddenGroupType
		}
	}
	return nil
}

// ValidateGroupCreation rejects exact (case-sensitive) name collisions.
func ValidateGroupCreation(candidate Group, existing []Group) error {
	if err := candidate.Validate(); err != nil {
		return InvalidInput(err)
	}
	for _, group := range existing {
		if group.Name == candidate.Name {
			return ErrDuplicateGroupName
		}
	}
	return nil
}

// ValidateGroupUpdate is ValidateGroupCreation ignoring the target's own row.
func ValidateGroupUpdate(candidate Group, target Group, existing []Group) error {
	if err := candidate.Validate(); err != nil {
		return InvalidInput(err)
	}
	for _, group := range existing {
		if group.ID == target.ID {
			continue
		}
		if group.Name == candidate.Name {
			return ErrDuplicateGroupName
		}
	}
	return nil
}

func nameTaken(name string, selfID int64, existing []Site) bool {
	for _, site := range existing {
		if selfID != 0 && site.ID == selfID {
			continue
		}
		if site.Name == name {
			return true
		}
	}
	return false
}

// UniqueIDs drops duplicate ids, keeping first-seen order.
func UniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
