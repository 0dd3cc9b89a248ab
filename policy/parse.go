package policy

import (
	"errors"
	"fmt"
	"strings"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrUnknownPolicy is returned by Parse when the input names no built-in
// policy and is not a parseable duration.
var ErrUnknownPolicy = errors.New("policy: unknown policy")

// Parse resolves a policy from its textual form. Recognized names are
// "always", "never", "hourly", "daily", "weekly", "monthly" and "yearly"
// (case-insensitive). Anything else is parsed as a duration ("90m", "2h30m",
// "1d12h") and becomes an interval policy via [Every].
func Parse(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return Always, nil
	case "never":
		return Never, nil
	case "hourly":
		return Hourly, nil
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	case "yearly":
		return Yearly, nil
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
	return Every(d), nil
}
