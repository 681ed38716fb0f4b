package report

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/franz/music-ledger/internal/util"
)

var relativeWindow = regexp.MustCompile(`^([0-9]+)([DWMY])$`)

// ParseWindow resolves a report boundary. Relative forms count back from
// now: "30D" days, "2W" weeks, "6M" months, "1Y" years. An absolute date
// is given as YYYY-MM-DD in now's location.
func ParseWindow(s string, now time.Time) (time.Time, error) {
	spec := strings.ToUpper(strings.TrimSpace(s))

	if m := relativeWindow.FindStringSubmatch(spec); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: window %q: %v", util.ErrInvalidConfig, s, err)
		}

		switch m[2] {
		case "D":
			return now.AddDate(0, 0, -n), nil
		case "W":
			return now.AddDate(0, 0, -7*n), nil
		case "M":
			return now.AddDate(0, -n, 0), nil
		default:
			return now.AddDate(-n, 0, 0), nil
		}
	}

	t, err := time.ParseInLocation(time.DateOnly, spec, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: window %q is neither <n>[DWMY] nor YYYY-MM-DD", util.ErrInvalidConfig, s)
	}
	return t, nil
}
