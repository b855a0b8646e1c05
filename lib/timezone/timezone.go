package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
}

// PERDIS rosters are expressed in German local time, so date arithmetic
// is forced into Europe/Berlin regardless of where the proxy happens to
// be deployed.
func Now() time.Time {
	return time.Now().In(Location)
}

// Today returns the current date as the canonical YYYY-MM-DD key used
// throughout the roster data model.
func Today() string {
	return Now().Format("2006-01-02")
}
