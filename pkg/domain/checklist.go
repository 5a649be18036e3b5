package domain

// ChecklistCategory groups checklist items on the inspection form.
type ChecklistCategory string

// Checklist categories.
const (
	CategoryStructural    ChecklistCategory = "structural"
	CategorySanitary      ChecklistCategory = "sanitary"
	CategoryHeating       ChecklistCategory = "heating"
	CategoryAccessibility ChecklistCategory = "accessibility"
)

// ChecklistItem is one line of the inspection checklist.
type ChecklistItem struct {
	ID       string            `json:"id"`
	Category ChecklistCategory `json:"category"`
	Label    string            `json:"label"`
	Cleaning bool              `json:"cleaning,omitempty"`
}

var checklist = []ChecklistItem{
	{ID: "ceiling", Category: CategoryStructural, Label: "Ceiling / false ceiling (leaks, detachment)"},
	{ID: "floor", Category: CategoryStructural, Label: "Floor (integrity, breakage)"},
	{ID: "floor_clean", Category: CategoryStructural, Label: "Floor cleaning", Cleaning: true},
	{ID: "cladding", Category: CategoryStructural, Label: "Wall cladding (tiles)"},
	{ID: "cladding_clean", Category: CategoryStructural, Label: "Cladding cleaning (grout)", Cleaning: true},
	{ID: "walls", Category: CategoryStructural, Label: "Walls (plaster, paint)"},
	{ID: "walls_clean", Category: CategoryStructural, Label: "Wall cleaning (graffiti, stains)", Cleaning: true},
	{ID: "window", Category: CategoryStructural, Label: "Window / frames"},
	{ID: "door", Category: CategoryStructural, Label: "Door / handle"},

	{ID: "sink", Category: CategorySanitary, Label: "Sink (tap, drain)"},
	{ID: "bidet", Category: CategorySanitary, Label: "Bidet"},
	{ID: "toilet", Category: CategorySanitary, Label: "Toilet / seat / flush"},
	{ID: "shower", Category: CategorySanitary, Label: "Shower (enclosure, tray, head)"},
	{ID: "shower_clean", Category: CategorySanitary, Label: "Shower cleaning (limescale, mould)", Cleaning: true},

	{ID: "radiator", Category: CategoryHeating, Label: "Radiator"},
	{ID: "radiator_finish", Category: CategoryHeating, Label: "Radiator finishes (rosettes)"},
	{ID: "thermostatic_valve", Category: CategoryHeating, Label: "Thermostatic valve"},
	{ID: "boiler", Category: CategoryHeating, Label: "Water heater"},

	{ID: "acc_door", Category: CategoryAccessibility, Label: "Access door (clear width >= 80cm, opens outward)"},
	{ID: "acc_maneuver", Category: CategoryAccessibility, Label: "Manoeuvring space (150cm turning circle or side approach)"},
	{ID: "acc_wc_pos", Category: CategoryAccessibility, Label: "WC height (45-50cm) and wall distance (>40cm to axis)"},
	{ID: "acc_wc_space", Category: CategoryAccessibility, Label: "WC lateral transfer space (min 100cm)"},
	{ID: "acc_bars", Category: CategoryAccessibility, Label: "Grab bars (80cm, horizontal or folding)"},
	{ID: "acc_sink_struct", Category: CategoryAccessibility, Label: "Wall-hung basin (rim 80cm, knee clearance)"},
	{ID: "acc_tap", Category: CategoryAccessibility, Label: "Tap (long clinical lever or sensor)"},
	{ID: "acc_mirror_h", Category: CategoryAccessibility, Label: "Mirror (tilting or lower edge < 90cm)"},
	{ID: "acc_alarm_cord", Category: CategoryAccessibility, Label: "Alarm pull cord reaching the floor"},
}

var checklistByID = func() map[string]ChecklistItem {
	out := make(map[string]ChecklistItem, len(checklist))
	for _, item := range checklist {
		out[item.ID] = item
	}
	return out
}()

// Checklist returns a copy of the inspection checklist in form order.
func Checklist() []ChecklistItem {
	return append([]ChecklistItem(nil), checklist...)
}

// LookupChecklistItem returns the checklist item with the given id.
func LookupChecklistItem(id string) (ChecklistItem, bool) {
	item, ok := checklistByID[id]
	return item, ok
}

// ChecklistLabel returns the human label for an item id, or the id itself
// when the item is not part of the catalog.
func ChecklistLabel(id string) string {
	if item, ok := checklistByID[id]; ok {
		return item.Label
	}
	return id
}
