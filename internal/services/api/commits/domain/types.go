// Package domain holds the read model of the commits API
package domain

import (
	"context"
	"os"

	"commitcrawl/internal/core/record"
)

// DefaultLimit is the page size when none is asked for
const DefaultLimit = 100

// Query filters and pages the dataset
type Query struct {
	Repo   string `name:"repo" validate:"omitempty,repo_slug"`
	Branch string `name:"branch" validate:"omitempty,max=255"`
	Author string `name:"author" validate:"omitempty,max=100"`
	Limit  int    `name:"limit" validate:"min=1,max=1000"`
	Offset int    `name:"offset" validate:"min=0"`
}

// Page is one slice of matching rows and the total match count
type Page struct {
	Rows  []record.Row
	Total int
}

// Dataset is the read side of the merge store
type Dataset interface {
	Load(ctx context.Context) ([]record.Row, error)
	Open() (*os.File, error)
	Path() string
}

// ServicePort is consumed by the commits handlers
type ServicePort interface {
	List(ctx context.Context, q Query) (Page, error)
	Open(ctx context.Context) (*os.File, error)
}
