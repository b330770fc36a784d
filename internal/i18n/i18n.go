// Package i18n picks the dashboard language and holds the few strings the
// backend renders itself.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/f5703swl/swl-web-sdr/internal/geo"
)

// Message keys.
const (
	MsgNoDeviceAvailable = "No WebSDR available at the moment"
	MsgDeviceNotFound    = "Device not found"
	MsgHistoryDisabled   = "History is not available on this server"
	MsgDataUnavailable   = "Device data is not available yet"
)

// Supported lists the dashboard languages; the first one is the fallback.
var Supported = []language.Tag{language.English, language.French}

var matcher = language.NewMatcher(Supported)

func init() {
	fr := language.French
	for key, val := range map[string]string{
		MsgNoDeviceAvailable: "Aucun WebSDR disponible pour le moment",
		MsgDeviceNotFound:    "Appareil introuvable",
		MsgHistoryDisabled:   "L'historique n'est pas disponible sur ce serveur",
		MsgDataUnavailable:   "Les données des appareils ne sont pas encore disponibles",
		"W":                  "O",
	} {
		_ = message.SetString(fr, key, val)
	}
}

// Match returns the supported language best matching the given preferences,
// each either a bare tag ("fr") or an Accept-Language header value. Earlier
// preferences win.
func Match(prefs ...string) language.Tag {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	_, i, _ := matcher.Match(tags...)
	return Supported[i]
}

// Code is the two-letter code of a supported tag.
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Labels returns the cardinal direction letters for tag.
func Labels(tag language.Tag) geo.DirectionLabels {
	p := message.NewPrinter(tag)
	return geo.DirectionLabels{
		North: p.Sprintf("N"),
		South: p.Sprintf("S"),
		East:  p.Sprintf("E"),
		West:  p.Sprintf("W"),
	}
}

// Text renders a message key in tag's language.
func Text(tag language.Tag, key string) string {
	return message.NewPrinter(tag).Sprintf(key)
}
