package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Scope selects which slice of telemetry a stream covers.
// The zero value is unset and never valid.
type Scope int

const (
	ScopeUnset Scope = iota
	ScopeAll
	ScopeAgent
	ScopeProject
	ScopeEnvironment
)

// DefaultWindow is applied when the caller supplies no time window.
const DefaultWindow = "24h"

// MaxWindow bounds the time window a stream may request.
const MaxWindow = 90 * 24 * time.Hour

// AllAgents is the agent_id value browsers send for an unscoped stream.
const AllAgents = "all"

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeAgent:
		return "agent"
	case ScopeProject:
		return "project"
	case ScopeEnvironment:
		return "environment"
	default:
		return "unset"
	}
}

// Filter is the immutable selector for one analytics stream.
type Filter struct {
	Scope  Scope
	ID     string
	Window string
}

// ResolveFilter builds a Filter from the raw candidates a request may carry.
// Precedence is environment > project > agent > all; blank candidates and
// the agent value "all" are ignored. An empty window becomes DefaultWindow.
func ResolveFilter(agentID, environmentID, projectID, window string) (Filter, error) {
	agentID = strings.TrimSpace(agentID)
	environmentID = strings.TrimSpace(environmentID)
	projectID = strings.TrimSpace(projectID)
	window = strings.TrimSpace(window)

	if window == "" {
		window = DefaultWindow
	}

	f := Filter{Scope: ScopeAll, Window: window}
	switch {
	case environmentID != "":
		f.Scope, f.ID = ScopeEnvironment, environmentID
	case projectID != "":
		f.Scope, f.ID = ScopeProject, projectID
	case agentID != "" && agentID != AllAgents:
		f.Scope, f.ID = ScopeAgent, agentID
	}

	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate reports ErrInvalidFilter for unset scopes, missing or stray IDs,
// and windows that are not positive durations within MaxWindow.
func (f Filter) Validate() error {
	switch f.Scope {
	case ScopeAll:
		if f.ID != "" {
			return fmt.Errorf("%w: scope all takes no identifier", ErrInvalidFilter)
		}
	case ScopeAgent, ScopeProject, ScopeEnvironment:
		if f.ID == "" {
			return fmt.Errorf("%w: %s scope requires an identifier", ErrInvalidFilter, f.Scope)
		}
	default:
		return fmt.Errorf("%w: scope is unset", ErrInvalidFilter)
	}

	d, err := ParseWindow(f.Window)
	if err != nil {
		return err
	}
	if d <= 0 || d > MaxWindow {
		return fmt.Errorf("%w: window %q out of range", ErrInvalidFilter, f.Window)
	}
	return nil
}

// ParseWindow parses a Go duration string, additionally accepting a whole
// number of days such as "7d".
func ParseWindow(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("%w: window %q", ErrInvalidFilter, s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: window %q", ErrInvalidFilter, s)
	}
	return d, nil
}

// Request encodes the filter as the StreamAnalytics request message.
func (f Filter) Request() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"time_window": structpb.NewStringValue(f.Window),
	}
	switch f.Scope {
	case ScopeAgent:
		fields["agent_id"] = structpb.NewStringValue(f.ID)
	case ScopeProject:
		fields["project_id"] = structpb.NewStringValue(f.ID)
	case ScopeEnvironment:
		fields["environment_id"] = structpb.NewStringValue(f.ID)
	}
	return &structpb.Struct{Fields: fields}
}

// String renders the filter for logs, e.g. "environment=env-1 window=1h".
func (f Filter) String() string {
	if f.Scope == ScopeAll {
		return "all window=" + f.Window
	}
	return f.Scope.String() + "=" + f.ID + " window=" + f.Window
}
