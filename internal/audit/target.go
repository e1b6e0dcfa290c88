// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package audit

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Target is the entity an entry is about. The set of implementations is
// closed by the unexported method.
type Target interface {
	TargetType() TargetType
	TargetID() string
	target()
}

// User is a platform account.
type User struct {
	ID       string
	Username string
}

// ReaderProfile is a user with a public reader profile.
type ReaderProfile struct {
	ID          string
	Username    string
	DisplayName string
	Avatar      string
}

// MangaTitle is a catalog title.
type MangaTitle struct {
	ID               string
	Title            string
	AlternativeTitle string
	Description      string
	CoverImage       string
}

// Chapter is one chapter of a title.
type Chapter struct {
	ID    string
	Title string
}

// Page is one page image of a chapter.
type Page struct {
	ID       string
	ImageURL string
}

// Comment is a reader comment with optional attached image.
type Comment struct {
	ID               string
	Text             string
	AttachedImageURL string
}

// Ref points at an entity without carrying its content.
type Ref struct {
	Type TargetType
	ID   string
}

func (t User) TargetType() TargetType          { return TargetUser }
func (t User) TargetID() string                { return t.ID }
func (User) target()                           {}
func (t ReaderProfile) TargetType() TargetType { return TargetUser }
func (t ReaderProfile) TargetID() string       { return t.ID }
func (ReaderProfile) target()                  {}
func (t MangaTitle) TargetType() TargetType    { return TargetMangaTitle }
func (t MangaTitle) TargetID() string          { return t.ID }
func (MangaTitle) target()                     {}
func (t Chapter) TargetType() TargetType       { return TargetChapter }
func (t Chapter) TargetID() string             { return t.ID }
func (Chapter) target()                        {}
func (t Page) TargetType() TargetType          { return TargetPage }
func (t Page) TargetID() string                { return t.ID }
func (Page) target()                           {}
func (t Comment) TargetType() TargetType       { return TargetComment }
func (t Comment) TargetID() string             { return t.ID }
func (Comment) target()                        {}
func (t Ref) TargetType() TargetType           { return t.Type }
func (t Ref) TargetID() string                 { return t.ID }
func (Ref) target()                            {}

func text(name, content string) Attribute {
	return Attribute{AttributeName: name, Content: content}
}

func image(name, content string) Attribute {
	return Attribute{AttributeName: name, IsImage: true, Content: content}
}

// snapshot returns the moderatable attributes of target, or nil for Ref.
func snapshot(target Target) (*Details, error) {
	var attrs []Attribute
	switch t := target.(type) {
	case Ref:
		return nil, nil
	case User:
		attrs = []Attribute{text("username", t.Username)}
	case ReaderProfile:
		attrs = []Attribute{
			text("username", t.Username),
			text("displayName", t.DisplayName),
			image("avatar", t.Avatar),
		}
	case MangaTitle:
		attrs = []Attribute{
			text("title", t.Title),
			text("alternativeTitle", t.AlternativeTitle),
			text("description", t.Description),
			image("coverImage", t.CoverImage),
		}
	case Chapter:
		attrs = []Attribute{text("title", t.Title)}
	case Page:
		attrs = []Attribute{image("imageUrl", t.ImageURL)}
	case Comment:
		if t.Text != "" {
			attrs = append(attrs, text("text", t.Text))
		}
		if t.AttachedImageURL != "" {
			attrs = append(attrs, image("attachedImageUrl", t.AttachedImageURL))
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnhandledTarget, target)
	}
	return &Details{TargetType: target.TargetType(), Attributes: attrs}, nil
}

// snapshotFields is the wire form of a target snapshot on the HTTP API.
type snapshotFields struct {
	Username         string `json:"username"`
	DisplayName      string `json:"displayName"`
	Avatar           string `json:"avatar"`
	Title            string `json:"title"`
	AlternativeTitle string `json:"alternativeTitle"`
	Description      string `json:"description"`
	CoverImage       string `json:"coverImage"`
	ImageURL         string `json:"imageUrl"`
	Text             string `json:"text"`
	AttachedImageURL string `json:"attachedImageUrl"`
}

// TargetKindReader selects ReaderProfile in DecodeTarget. Reader profiles
// are stored under the user target type.
const TargetKindReader = "reader"

// DecodeTarget builds a Target from an entity kind, an id and an optional
// JSON snapshot. Without a snapshot the result is a Ref.
func DecodeTarget(kind, id string, raw json.RawMessage) (Target, error) {
	kind = strings.TrimSpace(kind)
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrNilTarget)
	}

	tt := TargetType(kind)
	if kind == TargetKindReader {
		tt = TargetUser
	}
	if !tt.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTargetType, kind)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return Ref{Type: tt, ID: id}, nil
	}
	if !tt.Moderatable() {
		return nil, fmt.Errorf("%w: %s does not take a snapshot", ErrInvalidTargetType, kind)
	}

	var f snapshotFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDetails, err)
	}

	switch {
	case kind == TargetKindReader:
		return ReaderProfile{ID: id, Username: f.Username, DisplayName: f.DisplayName, Avatar: f.Avatar}, nil
	case tt == TargetUser:
		return User{ID: id, Username: f.Username}, nil
	case tt == TargetMangaTitle:
		return MangaTitle{ID: id, Title: f.Title, AlternativeTitle: f.AlternativeTitle,
			Description: f.Description, CoverImage: f.CoverImage}, nil
	case tt == TargetChapter:
		return Chapter{ID: id, Title: f.Title}, nil
	case tt == TargetPage:
		return Page{ID: id, ImageURL: f.ImageURL}, nil
	default:
		return Comment{ID: id, Text: f.Text, AttachedImageURL: f.AttachedImageURL}, nil
	}
}
