// Package store persists analysis records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/straja-ai/emotion/internal/config"
	"github.com/straja-ai/emotion/internal/sentiment"
)

var ErrNotFound = errors.New("record not found")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Record is one saved analysis.
type Record struct {
	ID        string             `json:"id"`
	Username  string             `json:"username"`
	Text      string             `json:"text"`
	LabelRaw  string             `json:"label_raw"`
	Label     sentiment.Category `json:"label"`
	Score     float64            `json:"score"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
}

// Filter narrows List. Zero values match everything; From and To are inclusive.
type Filter struct {
	Username string
	Label    sentiment.Category
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Page is one page of List results, newest first.
type Page struct {
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	Total    int      `json:"total"`
	Items    []Record `json:"items"`
}

type Store interface {
	// Create assigns ID and CreatedAt when they are empty.
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) (Page, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// New opens the store selected by cfg.Type.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// Normalize clamps paging to the defaults: page < 1 becomes 1, a page size
// outside 1..MaxPageSize becomes DefaultPageSize.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		f.PageSize = DefaultPageSize
	}
	f.Username = strings.TrimSpace(f.Username)
	return f
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.PageSize
}

func (f Filter) matches(r Record) bool {
	if f.Username != "" && r.Username != f.Username {
		return false
	}
	if f.Label != "" && r.Label != f.Label {
		return false
	}
	if f.From != nil && r.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && r.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
