package comment

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const (
	MaxBodyLen   = 5000
	maxIdeaIDLen = 64
)

// Each request shape owns its allow-list: only the listed fields are read,
// and free text goes through the UGC policy.
var policy = bluemonday.UGCPolicy()

type CreateInput struct {
	IdeaID   string  `json:"idea_id"`
	ParentID *string `json:"parent_id"`
	Body     string  `json:"body"`
}

type UpdateInput struct {
	Body string `json:"body"`
}

func (in CreateInput) normalize() (CreateInput, error) {
	out := CreateInput{IdeaID: strings.TrimSpace(in.IdeaID)}
	if out.IdeaID == "" || len(out.IdeaID) > maxIdeaIDLen {
		return CreateInput{}, fmt.Errorf("%w: idea_id required", ErrValidation)
	}

	if in.ParentID != nil {
		if p := strings.TrimSpace(*in.ParentID); p != "" {
			if _, err := uuid.Parse(p); err != nil {
				return CreateInput{}, fmt.Errorf("%w: parent_id must be a comment id", ErrValidation)
			}
			out.ParentID = &p
		}
	}

	body, err := cleanBody(in.Body)
	if err != nil {
		return CreateInput{}, err
	}
	out.Body = body
	return out, nil
}

func (in UpdateInput) normalize() (UpdateInput, error) {
	body, err := cleanBody(in.Body)
	if err != nil {
		return UpdateInput{}, err
	}
	return UpdateInput{Body: body}, nil
}

func cleanBody(raw string) (string, error) {
	body := strings.TrimSpace(policy.Sanitize(raw))
	switch {
	case body == "":
		return "", fmt.Errorf("%w: body required", ErrValidation)
	case utf8.RuneCountInString(body) > MaxBodyLen:
		return "", fmt.Errorf("%w: body longer than %d characters", ErrValidation, MaxBodyLen)
	}
	return body, nil
}

type ListQuery struct {
	IdeaID   string
	ParentID string
	Page     int
	Limit    int
}

func (q ListQuery) normalize() (ListQuery, error) {
	q.IdeaID = strings.TrimSpace(q.IdeaID)
	q.ParentID = strings.TrimSpace(q.ParentID)
	if q.IdeaID == "" && q.ParentID == "" {
		return ListQuery{}, fmt.Errorf("%w: must provide either idea_id or parent_id", ErrValidation)
	}
	if q.ParentID != "" {
		if _, err := uuid.Parse(q.ParentID); err != nil {
			return ListQuery{}, fmt.Errorf("%w: parent_id must be a comment id", ErrValidation)
		}
	}
	q.Page, q.Limit = paging(q.Page, q.Limit, 10)
	return q, nil
}

func paging(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
