// Package settings holds the persisted user preferences and their SQLite
// store. The restyling engine only ever reads settings; writes come from
// the companion CLI (install-time defaults, user changes), and change
// propagation rides the database's data_version via the watch package.
package settings

import (
	"slices"

	"github.com/hazyhaar/wudooh/fontface"
	"github.com/hazyhaar/wudooh/restyle"
)

// SiteOverride carries per-hostname styling parameters.
type SiteOverride struct {
	URL        string `json:"url"` // hostname
	TextSize   int    `json:"textSize"`
	LineHeight int    `json:"lineHeight"`
	Font       string `json:"font"`
}

// Settings is the full persisted preference set.
type Settings struct {
	TextSize       int                   `json:"textSize"`
	LineHeight     int                   `json:"lineHeight"`
	OnOff          bool                  `json:"onOff"`
	Font           string                `json:"font"`
	Whitelist      []string              `json:"whitelisted"`
	CustomSettings []SiteOverride        `json:"customSettings"`
	CustomFonts    []fontface.Descriptor `json:"customFonts"`
}

// Defaults are written once at install/update time and never overwritten.
func Defaults() Settings {
	return Settings{
		TextSize:   125,
		LineHeight: 145,
		OnOff:      true,
		Font:       "Droid Arabic Naskh",
	}
}

// Whitelisted reports whether host is excluded from restyling.
func (s Settings) Whitelisted(host string) bool {
	return slices.Contains(s.Whitelist, host)
}

// ParamsFor resolves the styling parameters for host: the first matching
// per-site override wins, otherwise the global values apply.
func (s Settings) ParamsFor(host string) restyle.Params {
	i := slices.IndexFunc(s.CustomSettings, func(o SiteOverride) bool {
		return o.URL == host
	})
	if i >= 0 {
		o := s.CustomSettings[i]
		return restyle.Params{TextSize: o.TextSize, LineHeight: o.LineHeight, Font: o.Font}
	}
	return restyle.Params{TextSize: s.TextSize, LineHeight: s.LineHeight, Font: s.Font}
}
