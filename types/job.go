package types

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Job is a job posting as served by the backend.
type Job struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company" validate:"required"`
	Location    string `json:"location"`
	Type        string `json:"type"`
	SalaryMin   int    `json:"salary_min" validate:"gte=0"`
	SalaryMax   int    `json:"salary_max" validate:"gte=0,gtefield=SalaryMin"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	RecruiterID string `json:"recruiter_id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// NewJob is the payload of POST /jobs.
type NewJob struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Type        string `json:"type" validate:"required"`
	SalaryMin   int    `json:"salary_min" validate:"gt=0"`
	SalaryMax   int    `json:"salary_max" validate:"gt=0,gtefield=SalaryMin"`
	Description string `json:"description" validate:"required"`
	Tags        string `json:"tags"`
	RecruiterID string `json:"recruiter_id" validate:"required"`
}

// SalaryLabel renders the salary range in thousands, e.g. "$120k - $150k".
func (j *Job) SalaryLabel() string {
	return fmt.Sprintf("$%dk - $%dk", j.SalaryMin/1000, j.SalaryMax/1000)
}

// TagList splits the comma separated tags, dropping blanks.
func (j *Job) TagList() []string {
	var tags []string
	for _, t := range strings.Split(j.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Logo is the first letter of the company, case kept.
func (j *Job) Logo() string {
	if j.Company == "" {
		return ""
	}
	return string([]rune(j.Company)[0])
}

// Matches reports whether term occurs in the title, the company or one of the
// tags, ignoring case. An empty term matches every job.
func (j *Job) Matches(term string) bool {
	term = strings.ToLower(term)
	if strings.Contains(strings.ToLower(j.Title), term) ||
		strings.Contains(strings.ToLower(j.Company), term) {
		return true
	}
	for _, tag := range j.TagList() {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// FilterJobs keeps the jobs matching term whose type contains jobType.
// jobType "all" or "" disables the type filter.
func FilterJobs(jobs []Job, term, jobType string) []Job {
	jobType = strings.ToLower(jobType)
	out := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if !j.Matches(term) {
			continue
		}
		if jobType != "" && jobType != "all" && !strings.Contains(strings.ToLower(j.Type), jobType) {
			continue
		}
		out = append(out, j)
	}
	return out
}

// Job orderings accepted by SortJobs.
const (
	SortRelevant = "relevant"
	SortNewest   = "newest"
	SortSalary   = "salary"
)

// SortJobs orders jobs in place. SortNewest puts the latest posting first,
// postings without a readable date last. SortSalary orders by the top of the
// salary range, highest first. SortRelevant keeps the server order.
func SortJobs(jobs []Job, by string) error {
	switch by {
	case SortRelevant, "":
	case SortNewest:
		slices.SortStableFunc(jobs, func(a, b Job) int {
			ta, errA := ParseFlexibleTime(a.CreatedAt)
			tb, errB := ParseFlexibleTime(b.CreatedAt)
			switch {
			case errA != nil && errB != nil:
				return 0
			case errA != nil:
				return 1
			case errB != nil:
				return -1
			}
			return tb.Compare(ta)
		})
	case SortSalary:
		slices.SortStableFunc(jobs, func(a, b Job) int {
			return cmp.Compare(b.SalaryMax, a.SalaryMax)
		})
	default:
		return fmt.Errorf("unknown job ordering %q", by)
	}
	return nil
}

// ParseFlexibleTime parses time fields that might be in different formats
func ParseFlexibleTime(timeStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", timeStr)
}

// PostedLabel renders the age of a posting relative to now in whole days.
func PostedLabel(created, now time.Time) string {
	days := int(now.Sub(created).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "1 day ago"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

// UserProfile is the subset of GET /user/{id} the library exposes.
type UserProfile struct {
	ID       string   `json:"id"`
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Title    string   `json:"title"`
	Role     string   `json:"role"`
	Location string   `json:"location"`
	Skills   []string `json:"skills"`
}
