package journeysvc

import (
	"strings"
)

// tubeColors maps tube line ids to their published line colours.
var tubeColors = map[string]string{
	"bakerloo":         "#B36305",
	"central":          "#E32017",
	"circle":           "#FFD300",
	"district":         "#00782A",
	"hammersmith-city": "#F3A9BB",
	"jubilee":          "#A0A5A9",
	"metropolitan":     "#9B0056",
	"northern":         "#000000",
	"piccadilly":       "#003688",
	"victoria":         "#0098D4",
	"waterloo-city":    "#95CDBA",
}

// railColors maps rail operators to their brand colours.
var railColors = map[string]string{
	"Southeastern":      "#1E1E50",
	"Southern":          "#003F2E",
	"Thameslink":        "#E9418B",
	"London Overground": "#EE7C0E",
	"Elizabeth Line":    "#6E4C9F",
}

const (
	defaultBusColor  = "#ef4444"
	defaultRailColor = "#3b82f6"
)

// tubeLineInfo resolves a route id to its tube display name and colour.
// Returns ok false when the route is not a tube line.
func tubeLineInfo(routeId string) (name, color string, ok bool) {
	routeLower := strings.ToLower(routeId)
	color, ok = tubeColors[routeLower]
	if !ok {
		return "", "", false
	}
	words := strings.Split(routeLower, "-")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " "), color, true
}

// railLineInfo resolves a rail route id of the form "operator/destCRS" to a
// display name and colour. nameFor translates the destination stop id to its
// display name. Unknown operators get the default rail colour.
func railLineInfo(routeId string, nameFor func(string) string) (string, string) {
	parts := strings.SplitN(routeId, "/", 2)
	if len(parts) < 2 {
		return routeId, defaultRailColor
	}
	name := parts[0] + "/" + nameFor(parts[1])
	if color, present := railColors[parts[0]]; present {
		return name, color
	}
	return name, defaultRailColor
}
