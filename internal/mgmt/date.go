package mgmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrBadDate is returned for management dates not in dd-mon form.
var ErrBadDate = eris.New("mgmt: bad management date")

var months = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// FormatDate converts a dd-mon date ("23-apr") and a year into the APSIM
// d/m/yyyy form ("23/4/2018").
func FormatDate(s string, year int) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return "", eris.Wrapf(ErrBadDate, "mgmt: date %q", s)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return "", eris.Wrapf(ErrBadDate, "mgmt: day in %q", s)
	}

	mon := strings.ToLower(parts[1])
	if len(mon) > 3 {
		mon = mon[:3]
	}
	m, ok := months[mon]
	if !ok {
		return "", eris.Wrapf(ErrBadDate, "mgmt: month in %q", s)
	}

	return fmt.Sprintf("%d/%d/%d", day, m, year), nil
}
