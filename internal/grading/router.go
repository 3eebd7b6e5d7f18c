package grading

import "strings"

// Route identifies the preprocessing strategy for a piece of media.
type Route int

const (
	// RouteInline sends the media bytes inside the inference call.
	RouteInline Route = iota
	// RouteRemote stages the media with the provider before the inference call.
	RouteRemote
)

func (r Route) String() string {
	if r == RouteRemote {
		return "remote"
	}
	return "inline"
}

// Instruction returns the per-route description sent alongside the media.
func (r Route) Instruction() string {
	if r == RouteRemote {
		return "Analyze this UI interaction/animation video."
	}
	return "Analyze this design image."
}

// RouteFor selects the preprocessing strategy from a declared content type.
// Absent content types are treated as non-video.
func RouteFor(contentType string) Route {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		return RouteRemote
	}
	return RouteInline
}
