package globe

import "github.com/mcdev12/globepath/go/internal/models"

// Indicator is what the UI shows for the current connection state.
type Indicator struct {
	Label       string
	Color       string
	SaveEnabled bool
}

var indicatorColors = map[models.ConnectionState]string{
	models.ConnectionStateConnecting: "yellow",
	models.ConnectionStateOnline:     "green",
	models.ConnectionStateOffline:    "red",
}

// IndicatorFor builds the indicator. Saving is enabled exactly when a submit
// would send.
func IndicatorFor(state models.ConnectionState, points int) Indicator {
	return Indicator{
		Label:       string(state),
		Color:       indicatorColors[state],
		SaveEnabled: state == models.ConnectionStateOnline && points > 0,
	}
}
