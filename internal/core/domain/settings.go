package domain

import "time"

// ServerConnection is a saved host entry.
type ServerConnection struct {
	URL           string    `json:"url"`
	Name          string    `json:"name,omitempty"`
	AccessCode    string    `json:"access_code,omitempty"`
	LastConnected time.Time `json:"last_connected"`
	Favorite      bool      `json:"favorite"`
}

// Settings is a full snapshot of persisted user preferences.
type Settings struct {
	ServerURL       string              `json:"server_url"`
	AccessCode      string              `json:"access_code,omitempty"`
	Video           VideoConfig         `json:"video"`
	PalmRejection   PalmRejectionConfig `json:"palm_rejection"`
	PressureGamma   float64             `json:"pressure_gamma"`
	ShowPerformance bool                `json:"show_performance"`
	Servers         []ServerConnection  `json:"servers,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		Video:         DefaultVideoConfig(),
		PalmRejection: DefaultPalmRejectionConfig(),
		PressureGamma: 1.0,
	}
}

// RememberServer records a successful connection, most recent first.
func (s *Settings) RememberServer(url, accessCode string, at time.Time) {
	entry := ServerConnection{URL: url, AccessCode: accessCode, LastConnected: at}
	kept := make([]ServerConnection, 0, len(s.Servers)+1)
	for _, existing := range s.Servers {
		if existing.URL == url {
			entry.Name = existing.Name
			entry.Favorite = existing.Favorite
			continue
		}
		kept = append(kept, existing)
	}
	s.Servers = append([]ServerConnection{entry}, kept...)
}
