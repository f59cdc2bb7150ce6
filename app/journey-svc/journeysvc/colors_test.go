package journeysvc

import "testing"

func TestTubeLineInfo(t *testing.T) {
	tests := []struct {
		routeId   string
		wantName  string
		wantColor string
		wantOk    bool
	}{
		{"victoria", "Victoria", "#0098D4", true},
		{"Victoria", "Victoria", "#0098D4", true},
		{"hammersmith-city", "Hammersmith City", "#F3A9BB", true},
		{"waterloo-city", "Waterloo City", "#95CDBA", true},
		{"88", "", "", false},
		{"SN/CLJ", "", "", false},
	}
	for _, tt := range tests {
		name, color, ok := tubeLineInfo(tt.routeId)
		if name != tt.wantName || color != tt.wantColor || ok != tt.wantOk {
			t.Errorf("tubeLineInfo(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.routeId, name, color, ok, tt.wantName, tt.wantColor, tt.wantOk)
		}
	}
}

func TestRailLineInfo(t *testing.T) {
	nameFor := func(stopId string) string {
		if stopId == "CLJ" {
			return "Clapham Junction"
		}
		return stopId
	}

	name, color := railLineInfo("Southern/CLJ", nameFor)
	if name != "Southern/Clapham Junction" || color != "#003F2E" {
		t.Errorf("known operator = (%q, %q)", name, color)
	}

	name, color = railLineInfo("GW/CLJ", nameFor)
	if name != "GW/Clapham Junction" || color != defaultRailColor {
		t.Errorf("unknown operator = (%q, %q)", name, color)
	}

	name, color = railLineInfo("victoria", nameFor)
	if name != "victoria" || color != defaultRailColor {
		t.Errorf("malformed route id = (%q, %q)", name, color)
	}
}
