// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/validation"
)

// maxBodyBytes bounds request bodies. Snapshots carry text and image URLs,
// never image bytes.
const maxBodyBytes = 1 << 20

const defaultPageLimit = 100

// ActorRequest identifies who performed an action.
type ActorRequest struct {
	ID       string `json:"id" validate:"notblank,max=128"`
	Username string `json:"username" validate:"max=150"`
}

func (a *ActorRequest) toActor() *audit.Actor {
	if a == nil {
		return nil
	}
	return &audit.Actor{ID: a.ID, Username: a.Username}
}

// CreateEntryRequest is the body of POST /audit/entries. Snapshot carries
// the entity's current content for create and update actions. target_type
// "reader" records a user with a reader profile.
type CreateEntryRequest struct {
	Actor      *ActorRequest   `json:"actor" validate:"omitempty"`
	Action     string          `json:"action" validate:"required,oneof=login logout create update delete auto_resolve_flag resolve_flag"`
	TargetType string          `json:"target_type" validate:"required,max=64"`
	TargetID   string          `json:"target_id" validate:"notblank,max=128"`
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
}

// ResolveFlagRequest is the body of POST /flags/{id}/resolve.
type ResolveFlagRequest struct {
	Actor *ActorRequest `json:"actor" validate:"required"`
}

// PageRequest holds validated paging parameters.
type PageRequest struct {
	Limit  int `json:"limit" validate:"gte=1,lte=500"`
	Offset int `json:"offset" validate:"gte=0"`
}

var errEmptyBody = errors.New("request body is required")

// decodeBody reads a bounded JSON body into v, rejecting unknown fields and
// trailing data.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// validateRequest runs validator rules on v and returns the API error body,
// or nil.
func validateRequest(v interface{}) *APIError {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	apiErr := verr.ToAPIError()
	return &APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}
}

// parsePage reads limit and offset. Non-numeric values are reported rather
// than silently replaced.
func parsePage(r *http.Request) (PageRequest, *APIError) {
	page := PageRequest{Limit: defaultPageLimit}
	q := r.URL.Query()
	for key, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, &APIError{Code: ErrCodeValidation, Message: key + " must be an integer"}
		}
		*dst = n
	}
	if apiErr := validateRequest(&page); apiErr != nil {
		return page, apiErr
	}
	return page, nil
}

// parseOptionalBool reads a boolean query parameter. "" returns def, "all"
// returns nil.
func parseOptionalBool(r *http.Request, key string, def *bool) (*bool, *APIError) {
	raw := r.URL.Query().Get(key)
	switch raw {
	case "":
		return def, nil
	case "all":
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &APIError{Code: ErrCodeValidation, Message: fmt.Sprintf("%s must be true, false or all", key)}
	}
	return &b, nil
}
