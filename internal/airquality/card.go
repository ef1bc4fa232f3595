package airquality

// Card is the dashboard air quality view model.
type Card struct {
	AQI    int    `json:"aqi"`
	City   string `json:"city,omitempty"`
	Status string `json:"status,omitempty"`
	Advice string `json:"advice,omitempty"`
	Icon   string `json:"icon,omitempty"`
	Tone   string `json:"tone,omitempty"` // green | yellow | red
	// Degraded is set when no reading could be shown.
	Degraded bool   `json:"degraded,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Classify buckets a US AQI value: up to 50 is Good, up to 100 Moderate,
// anything above Unhealthy.
func Classify(aqi int) Card {
	switch {
	case aqi <= 50:
		return Card{AQI: aqi, Status: "Good", Tone: "green", Icon: "wind",
			Advice: "Great day for a nature walk on campus!"}
	case aqi <= 100:
		return Card{AQI: aqi, Status: "Moderate", Tone: "yellow", Icon: "cloud",
			Advice: "Air is okay. Good for saving energy indoors."}
	default:
		return Card{AQI: aqi, Status: "Unhealthy", Tone: "red", Icon: "alert-triangle",
			Advice: "High pollution. Wear a mask if outside!"}
	}
}

// LocationDenied is the card shown when the browser shares no location.
func LocationDenied() Card {
	return Card{Degraded: true, Message: "Enable location to see local Air Quality."}
}

// Unavailable is the card shown when the upstream lookup failed.
func Unavailable() Card {
	return Card{Degraded: true, Message: "Air quality is unavailable right now."}
}
