package scheduler

import (
	"fmt"
	"strings"
	"time"
)

const invitationSubject = "Interview invitation: {job_title} at {company}"

const invitationBody = `Dear {candidate_name},

Thank you for applying for the {job_title} position at {company}. We were
impressed by your profile and would like to invite you to an interview.

Please pick one of the proposed slots and reply to this email:

{slots}

We look forward to speaking with you.

Best regards,
{company} Recruiting`

const rejectionSubject = "Your application for {job_title} at {company}"

const rejectionBody = `Dear {candidate_name},

Thank you for your interest in the {job_title} position at {company}.
After careful consideration we have decided not to move forward with your
application at this time.

We encourage you to apply for future openings that match your profile.

Best regards,
{company} Recruiting`

// renderTemplate substitutes {placeholder} values into a template. Unknown
// placeholders are left untouched so broken templates are visible in the
// delivered mail rather than silently blanked.
func renderTemplate(template string, values map[string]string) string {
	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(template)
}

// Slot is a proposed interview time.
type Slot struct {
	Start time.Time
	End   time.Time
}

func (s Slot) String() string {
	return fmt.Sprintf("%s, %s - %s",
		s.Start.Format("Monday, January 2 2006"),
		s.Start.Format("15:04"),
		s.End.Format("15:04"),
	)
}

// ProposeSlots generates n interview slots starting the next business day:
// one morning and one afternoon slot per weekday, weekends skipped.
func ProposeSlots(from time.Time, n int) []Slot {
	if n <= 0 {
		return nil
	}

	slots := make([]Slot, 0, n)
	day := from.AddDate(0, 0, 1)
	for len(slots) < n {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			day = day.AddDate(0, 0, 1)
			continue
		}

		for _, hour := range []int{10, 14} {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
			slots = append(slots, Slot{Start: start, End: start.Add(time.Hour)})
			if len(slots) == n {
				break
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

func formatSlots(slots []Slot) string {
	lines := make([]string, 0, len(slots))
	for i, slot := range slots {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, slot))
	}
	return strings.Join(lines, "\n")
}
