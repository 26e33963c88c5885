package weather

var windScale = []struct {
	below float64
	label string
}{
	{12, "Calm"},
	{20, "Light breeze"},
	{29, "Gentle breeze"},
	{39, "Moderate wind"},
	{50, "Fresh wind"},
	{62, "Strong wind"},
	{75, "Near gale"},
	{89, "Gale"},
}

// WindDescriptor returns a Beaufort-style label for a wind speed in km/h.
func WindDescriptor(kmh float64) string {
	for _, step := range windScale {
		if kmh < step.below {
			return step.label
		}
	}
	return "Storm force"
}
