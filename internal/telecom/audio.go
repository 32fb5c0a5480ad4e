package telecom

import "fmt"

// AudioRoute identifies where call audio is currently routed.
type AudioRoute int

const (
	RouteEarpiece AudioRoute = iota + 1
	RouteSpeaker
	RouteWiredHeadset
	RouteBluetooth
)

// String returns a human-readable representation of the route.
func (r AudioRoute) String() string {
	switch r {
	case RouteEarpiece:
		return "Earpiece"
	case RouteSpeaker:
		return "Speaker"
	case RouteWiredHeadset:
		return "WiredHeadset"
	case RouteBluetooth:
		return "Bluetooth"
	default:
		return fmt.Sprintf("Unknown(%d)", int(r))
	}
}
