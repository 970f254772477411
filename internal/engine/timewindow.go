package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// timeWindowMatches checks a policy's time-based access constraints against
// an instant. A nil window always matches. All present checks must pass.
//
// Hour bounds are parsed from "HH:MM" strings down to the hour component
// only: minutes do not participate, so a 09:30-17:30 window behaves as
// 09:00-17:59. The interval test is inclusive on both ends. That coarse
// granularity matches the authoring system and is relied on by existing
// policies.
func timeWindowMatches(tba *types.TimeBasedAccess, now time.Time) bool {
	if tba == nil {
		return true
	}

	if tba.ValidFrom != nil && now.Before(*tba.ValidFrom) {
		return false
	}
	if tba.ValidUntil != nil && now.After(*tba.ValidUntil) {
		return false
	}

	if len(tba.AllowedDays) > 0 {
		// Case-insensitive: allowedDays is authored lowercase but has
		// arrived capitalized from older admin screens.
		day := now.Weekday().String()
		matched := false
		for _, allowed := range tba.AllowedDays {
			if strings.EqualFold(allowed, day) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(tba.AllowedHours) > 0 {
		hour := now.Hour()
		matched := false
		for _, window := range tba.AllowedHours {
			start, okStart := parseHour(window.Start)
			end, okEnd := parseHour(window.End)
			if okStart && okEnd && start <= hour && hour <= end {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// parseHour extracts the hour component from an "HH:MM" string.
func parseHour(s string) (int, bool) {
	head, _, found := strings.Cut(s, ":")
	if !found {
		head = s
	}
	h, err := strconv.Atoi(head)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
