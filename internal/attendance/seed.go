package attendance

import (
	"math/rand/v2"
	"time"

	"classroll/internal/directory"
)

var demoSubjects = []string{"Math", "Science", "History", "Physics"}

// DemoRecords generates weekday attendance for every student over the 30
// calendar days ending at now. Roughly one in ten records is ABSENT and one
// in ten LATE.
func DemoRecords(users []directory.User, now time.Time, rng *rand.Rand) []Record {
	var out []Record
	today := now.UTC()
	for i := 0; i < 30; i++ {
		day := today.AddDate(0, 0, -i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		date := day.Format(DateLayout)

		for _, u := range users {
			if u.Role != directory.RoleStudent {
				continue
			}
			status := StatusPresent
			switch roll := rng.Float64(); {
			case roll < 0.1:
				status = StatusAbsent
			case roll < 0.2:
				status = StatusLate
			}
			rec := Record{
				ID:       u.ID + "-" + date,
				UserID:   u.ID,
				UserName: u.Name,
				Date:     date,
				Status:   status,
				Subject:  demoSubjects[rng.IntN(len(demoSubjects))],
			}
			if status != StatusAbsent {
				rec.CheckInTime = "08:00 AM"
			}
			out = append(out, rec)
		}
	}
	sortByDateDesc(out)
	return out
}
