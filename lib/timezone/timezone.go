package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("GMT")
	if err != nil {
		panic(err)
	}
}

// the monitoring portal reports playback timestamps in GMT regardless
// of where the site or this process lives, so date arithmetic
// (daily report boundaries, dedup windows) is pinned to GMT as well
// to avoid disturbances from <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}
