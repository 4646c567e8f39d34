// Package wudooh drives the restyling of one page: it runs the initial
// full pass over the mirror tree, keeps a mutation watcher subscribed,
// and reacts to settings messages by restyling in place or swapping the
// watcher for one with new parameters.
package wudooh

import (
	"encoding/json"

	"github.com/hazyhaar/wudooh/fontface"
	"github.com/hazyhaar/wudooh/restyle"
)

// Message reasons. Anything else is logged and dropped.
const (
	ReasonUpdateAllText     = "updateAllText"
	ReasonInjectCustomFonts = "injectCustomFonts"
)

// Message is the settings-change payload delivered to page controllers.
// The reason field selects which of the remaining fields are meaningful.
type Message struct {
	Reason      string                `json:"reason"`
	NewSize     int                   `json:"newSize,omitempty"`
	NewHeight   int                   `json:"newHeight,omitempty"`
	Font        string                `json:"font,omitempty"`
	CustomFonts []fontface.Descriptor `json:"customFonts,omitempty"`
}

// UpdateAllText builds the message that re-runs the full pass with new
// styling parameters.
func UpdateAllText(p restyle.Params) Message {
	return Message{
		Reason:    ReasonUpdateAllText,
		NewSize:   p.TextSize,
		NewHeight: p.LineHeight,
		Font:      p.Font,
	}
}

// InjectCustomFonts builds the message that replaces the custom font
// definitions without touching wrapped text.
func InjectCustomFonts(fonts []fontface.Descriptor) Message {
	return Message{Reason: ReasonInjectCustomFonts, CustomFonts: fonts}
}

// Encode serialises the message for the relay.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
