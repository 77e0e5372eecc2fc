package github

import (
	"time"
)

// User is the authenticated account
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Type  string `json:"type"`
}

// Branch is one element of a branches page
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
	Protected bool `json:"protected"`
}

// CommitQuery scopes a commit listing. Zero fields are omitted.
type CommitQuery struct {
	Repo   string
	Branch string
	Since  *time.Time
	Until  *time.Time
	Author string
}
