package importer

import (
	"strings"

	"campuscore/internal/hierarchy"
	"campuscore/pkg/domain"
)

// genderKeywords is matched in order against the lower-cased keyword; the
// first hit wins. Female comes before male because "female" and "women"
// contain the male keywords.
var genderKeywords = []struct {
	gender   domain.Gender
	keywords []string
}{
	{domain.GenderFemale, []string{"donn", "fem", "woman", "women"}},
	{domain.GenderDisabled, []string{"disab", "hand", "access"}},
	{domain.GenderMale, []string{"uom", "male", "men", "man"}},
}

// ClassifyGender maps a free-text gender keyword (Italian or English) to a
// gender. Unrecognised input is all-gender.
func ClassifyGender(raw string) domain.Gender {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return domain.GenderAllGender
	}
	for _, entry := range genderKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.gender
			}
		}
	}
	return domain.GenderAllGender
}

// SkippedRow reports an input line that produced nothing.
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result is the merge set produced by Reconcile.
type Result struct {
	NewCampuses  []domain.Campus   `json:"new_campuses"`
	NewBathrooms []domain.Bathroom `json:"new_bathrooms"`
	Skipped      []SkippedRow      `json:"skipped,omitempty"`
}

// Reconcile resolves every row to an existing campus by case-insensitive
// trimmed name, creating new root campuses for unknown names, and builds one
// bathroom per row. Rows lacking a site, floor or code are skipped. Existing
// campuses are never modified and nesting is never inferred.
func Reconcile(existing []domain.Campus, rows []Row, newID func() string) Result {
	forest := hierarchy.NewForest(existing)
	byName := make(map[string]string, len(existing))
	for _, c := range forest.Campuses() {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if _, taken := byName[key]; !taken {
			byName[key] = c.ID
		}
	}
	nextOrder := forest.NextOrder("")

	res := Result{NewCampuses: []domain.Campus{}, NewBathrooms: []domain.Bathroom{}}
	for _, row := range rows {
		site := strings.TrimSpace(row.Site)
		floor := strings.TrimSpace(row.Floor)
		code := strings.TrimSpace(row.Code)
		switch {
		case site == "":
			res.Skipped = append(res.Skipped, SkippedRow{Line: row.Line, Reason: "missing site"})
			continue
		case floor == "":
			res.Skipped = append(res.Skipped, SkippedRow{Line: row.Line, Reason: "missing floor"})
			continue
		case code == "":
			res.Skipped = append(res.Skipped, SkippedRow{Line: row.Line, Reason: "missing code"})
			continue
		}
		key := strings.ToLower(site)
		campusID, ok := byName[key]
		if !ok {
			campus := domain.Campus{Base: domain.Base{ID: newID()}, Name: site, OrderIndex: nextOrder}
			nextOrder += hierarchy.OrderGap
			res.NewCampuses = append(res.NewCampuses, campus)
			byName[key] = campus.ID
			campusID = campus.ID
		}
		res.NewBathrooms = append(res.NewBathrooms, domain.Bathroom{
			Base:     domain.Base{ID: newID()},
			CampusID: campusID,
			Floor:    floor,
			Code:     code,
			Gender:   ClassifyGender(row.Gender),
			Notes:    strings.TrimSpace(row.Notes),
		})
	}
	return res
}
