package insight

import (
	"cmp"
	"context"
	"encoding/xml"
	"fmt"

	"insights/internal/db"
	"insights/internal/filter"
	"insights/internal/schema"
)

// Input is one execution request. Filter holds the values of input filters by name.
type Input struct {
	ConnectionID  string
	TransactionID string
	Limit         *int
	Offset        *int64
	OrderBy       []string
	TotalCount    bool
	Filter        map[string][]any
}

// Page describes where the results sit in the full result set.
type Page struct {
	Total     int64 `json:"total" xml:"total"`
	Offset    int64 `json:"offset" xml:"offset"`
	Limit     *int  `json:"limit,omitempty" xml:"limit,omitempty"`
	PageCount int64 `json:"pageCount" xml:"pageCount"`
	Current   int64 `json:"current" xml:"current"`
}

func newPage(total int64, offset *int64, limit *int) *Page {
	p := &Page{Total: total, Limit: limit, PageCount: 1}
	if offset != nil {
		p.Offset = *offset
	}
	if limit != nil && *limit > 0 {
		l := int64(*limit)
		p.PageCount = (total + l - 1) / l
		p.Current = p.Offset / l
	}
	return p
}

type Output struct {
	XMLName xml.Name        `json:"-" xml:"output"`
	Results []schema.Record `json:"results" xml:"results"`
	Page    *Page           `json:"page,omitempty" xml:"page,omitempty"`
}

// ExecutionError reports a failed select.
type ExecutionError struct {
	ArtifactID string
	Cause      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("insight %s: %v", e.ArtifactID, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Execute runs the insight. Without a connection id it uses the configured connection,
// then the engine default.
func (a *Artifact) Execute(ctx context.Context, in Input) (*Output, error) {
	result := a.result()
	res, err := a.engine.Select(ctx, db.SelectRequest{
		ConnectionID:  cmp.Or(in.ConnectionID, a.cfg.Connection),
		TransactionID: in.TransactionID,
		TypeID:        result.ID,
		Offset:        in.Offset,
		Limit:         in.Limit,
		OrderBy:       in.OrderBy,
		TotalCount:    in.TotalCount,
		Filters:       filter.Compile(a.filters, a.resolveFilter, in.Filter),
		GroupBy:       a.GroupBy(),
	})
	if err != nil {
		return nil, &ExecutionError{ArtifactID: a.id, Cause: err}
	}
	out := &Output{Results: res.Rows}
	if out.Results == nil {
		out.Results = []schema.Record{}
	}
	if res.Total != nil {
		out.Page = newPage(*res.Total, in.Offset, in.Limit)
	}
	return out, nil
}
