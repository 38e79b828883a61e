package types

import "time"

// SubjectKind selects which insight endpoint a request goes to
type SubjectKind string

const (
	// SubjectSeeker asks for jobs matching a job seeker (GET /users/{id}/suggestions).
	SubjectSeeker SubjectKind = "seeker"
	// SubjectJob asks for candidates matching a recruiter's job (GET /jobs/{id}/suggestions).
	SubjectJob SubjectKind = "job"
)

// Subject identifies what insights are requested for.
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

func SeekerSubject(userID string) Subject { return Subject{Kind: SubjectSeeker, ID: userID} }

func JobSubject(jobID string) Subject { return Subject{Kind: SubjectJob, ID: jobID} }

func (s Subject) String() string {
	return string(s.Kind) + ":" + s.ID
}

// InsightMatch is one AI-ranked match, normalized across both endpoints.
// For seekers SubjectName is the job title and SubjectIdentifier the company;
// for jobs they are the candidate's name and email.
type InsightMatch struct {
	SubjectName       string `json:"subjectName"`
	SubjectIdentifier string `json:"subjectIdentifier"`
	MatchingScore     int    `json:"matchingScore"`
	Recommended       bool   `json:"recommended"`
	Reasoning         string `json:"reasoning"`
}

// InsightResult is the outcome of one insight service call.
type InsightResult struct {
	Subject   Subject        `json:"subject"`
	Matches   []InsightMatch `json:"matches"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

func (r *InsightResult) Empty() bool {
	return r == nil || len(r.Matches) == 0
}

// RecommendedCount returns the number of matches flagged as recommended.
func (r *InsightResult) RecommendedCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, m := range r.Matches {
		if m.Recommended {
			n++
		}
	}
	return n
}

// TopScore returns the highest matching score, or 0 for an empty result.
func (r *InsightResult) TopScore() int {
	if r == nil {
		return 0
	}
	top := 0
	for _, m := range r.Matches {
		if m.MatchingScore > top {
			top = m.MatchingScore
		}
	}
	return top
}
