package models

// ContestListRequest selects one page of the contest archive.
type ContestListRequest struct {
	Page uint32
}

type ContestListResponse struct {
	Contests []Contest `json:"contests"`
}

// ProblemListRequest selects the task list of a contest.
type ProblemListRequest struct {
	ContestID string
}

type ProblemListResponse struct {
	Problems []Problem `json:"problems"`
}

// SubmissionListRequest selects one page of a contest's submissions.
// A zero Page means the first page.
type SubmissionListRequest struct {
	ContestID string
	Page      uint32
}

type SubmissionListResponse struct {
	MaxPage     uint32       `json:"max_page"`
	Submissions []Submission `json:"submissions"`
}
