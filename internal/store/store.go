package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidName = errors.New("store: invalid document name")

// Store persists whole JSON documents by name. Load reports a missing
// document with ok == false and a nil error.
type Store interface {
	Load(ctx context.Context, name string) ([]byte, bool, error)
	Save(ctx context.Context, name string, body []byte) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

type Entry struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidateName rejects names that cannot double as a file name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// LoadJSON decodes the named document into v.
func LoadJSON(ctx context.Context, s Store, name string, v any) (bool, error) {
	body, ok, err := s.Load(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", name, err)
	}
	return true, nil
}

func SaveJSON(ctx context.Context, s Store, name string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", name, err)
	}
	return s.Save(ctx, name, append(body, '\n'))
}

// NopStore never holds anything; every stage recomputes.
type NopStore struct{}

func (s *NopStore) Load(ctx context.Context, name string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *NopStore) Save(ctx context.Context, name string, body []byte) error {
	return nil
}

func (s *NopStore) Delete(ctx context.Context, name string) error {
	return nil
}

func (s *NopStore) List(ctx context.Context) ([]Entry, error) {
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}

var _ Store = (*NopStore)(nil)
