package backend

import (
	"context"
	"net/http"

	errs "github.com/jrsteele09/openleaf-portal/internal/errors"
)

type Journals struct {
	api       Doer
	baseURL   string
	validator *payloadValidator
}

func (j *Journals) Create(ctx context.Context, content string) (*Journal, error) {
	req := CreateJournalRequest{Content: content}
	if err := j.validator.Validate(req); err != nil {
		return nil, err
	}
	var created Journal
	if err := j.api.Do(ctx, http.MethodPost, join(j.baseURL, "create"), req, &created); err != nil {
		return nil, errs.Wrapf(err, "[backend Journals.Create]")
	}
	return &created, nil
}

// List returns the caller's own journal entries.
func (j *Journals) List(ctx context.Context) ([]Journal, error) {
	var journals []Journal
	if err := j.api.Do(ctx, http.MethodGet, j.baseURL, nil, &journals); err != nil {
		return nil, errs.Wrapf(err, "[backend Journals.List]")
	}
	return journals, nil
}

func (j *Journals) Get(ctx context.Context, id int64) (*Journal, error) {
	var journal Journal
	if err := j.api.Do(ctx, http.MethodGet, join(j.baseURL, idSegment(id)), nil, &journal); err != nil {
		return nil, errs.Wrapf(err, "[backend Journals.Get] %d", id)
	}
	return &journal, nil
}
