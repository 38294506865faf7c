package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// epochMillisFloor separates epoch seconds from epoch milliseconds in an
// integer timestamp. 1e11 seconds is past the year 5000.
const epochMillisFloor = 100_000_000_000

// Instant is a producer timestamp. It decodes from an RFC 3339 string, from
// integer epoch seconds or milliseconds, and from decimal epoch seconds
// ("1760000000.123456789"). It always encodes as RFC 3339.
type Instant struct {
	time.Time
}

func (t *Instant) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = parsed
		return nil
	}

	parsed, err := parseEpoch(raw)
	if err != nil {
		return fmt.Errorf("timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

func parseEpoch(raw string) (time.Time, error) {
	whole, frac, hasFrac := strings.Cut(raw, ".")
	sec, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	if sec < 0 {
		return time.Time{}, fmt.Errorf("negative epoch")
	}
	if !hasFrac {
		if sec >= epochMillisFloor {
			return time.UnixMilli(sec).UTC(), nil
		}
		return time.Unix(sec, 0).UTC(), nil
	}

	if len(frac) > 9 {
		frac = frac[:9]
	}
	if strings.TrimLeft(frac, "0123456789") != "" {
		return time.Time{}, fmt.Errorf("invalid fraction")
	}
	nsec, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, nsec).UTC(), nil
}
