package risk

// Category is one question of the risk checklist.
type Category string

const (
	CategoryDistance      Category = "distance"
	CategoryRoadCondition Category = "road_condition"
	CategoryWeather       Category = "weather"
	CategoryCommunication Category = "communication"
	CategoryConvoy        Category = "convoy"
	CategoryTraffic       Category = "traffic"
)

// Option is a selectable answer for a category.
type Option struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// Definition describes a category and its options, in display order.
type Definition struct {
	Category Category `json:"category"`
	Label    string   `json:"label"`
	Options  []Option `json:"options"`
}

func (d Definition) option(key string) (Option, bool) {
	for _, o := range d.Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// categories is the single source of truth for the checklist.
var categories = []Definition{
	{
		Category: CategoryDistance,
		Label:    "Trip distance",
		Options: []Option{
			{Key: "short", Label: "Under 200 km", Points: 1},
			{Key: "medium", Label: "200 to 600 km", Points: 3},
			{Key: "long", Label: "Over 600 km", Points: 5},
		},
	},
	{
		Category: CategoryRoadCondition,
		Label:    "Road condition",
		Options: []Option{
			{Key: "paved", Label: "Paved, good condition", Points: 1},
			{Key: "degraded", Label: "Paved with damage or gravel", Points: 2},
			{Key: "unpaved", Label: "Dirt track", Points: 4},
		},
	},
	{
		Category: CategoryWeather,
		Label:    "Weather",
		Options: []Option{
			{Key: "clear", Label: "Clear", Points: 1},
			{Key: "light_rain", Label: "Light rain or wind", Points: 3},
			{Key: "severe", Label: "Storm, snow or dense fog", Points: 5},
		},
	},
	{
		Category: CategoryCommunication,
		Label:    "Communication availability",
		Options: []Option{
			{Key: "full", Label: "Full coverage", Points: 1},
			{Key: "partial", Label: "Partial coverage", Points: 2},
			{Key: "none", Label: "No coverage", Points: 4},
		},
	},
	{
		Category: CategoryConvoy,
		Label:    "Convoy configuration",
		Options: []Option{
			{Key: "escorted", Label: "Escorted convoy", Points: 1},
			{Key: "paired", Label: "Two vehicles", Points: 2},
			{Key: "solo", Label: "Single vehicle", Points: 3},
		},
	},
	{
		Category: CategoryTraffic,
		Label:    "Traffic density",
		Options: []Option{
			{Key: "low", Label: "Low", Points: 1},
			{Key: "moderate", Label: "Moderate", Points: 2},
			{Key: "heavy", Label: "Heavy", Points: 4},
		},
	},
}

// Categories returns a copy of the checklist definition for forms.
func Categories() []Definition {
	out := make([]Definition, len(categories))
	for i, d := range categories {
		d.Options = append([]Option(nil), d.Options...)
		out[i] = d
	}
	return out
}

func lookupCategory(c Category) (Definition, bool) {
	for _, d := range categories {
		if d.Category == c {
			return d, true
		}
	}
	return Definition{}, false
}
