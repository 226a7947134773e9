package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultStorePath      = "vector_db_store"
	DefaultCollectionName = "annual_reports_collection"
)

// CollectionRef identifies one collection inside one on-disk store.
type CollectionRef struct {
	Path string
	Name string
}

// NewCollectionRef creates a CollectionRef, applying defaults for blank fields.
func NewCollectionRef(path, name string) CollectionRef {
	if strings.TrimSpace(path) == "" {
		path = DefaultStorePath
	}
	if strings.TrimSpace(name) == "" {
		name = DefaultCollectionName
	}
	return CollectionRef{Path: path, Name: name}
}

// Validate checks both parts are present.
func (r CollectionRef) Validate() error {
	if strings.TrimSpace(r.Path) == "" || strings.TrimSpace(r.Name) == "" {
		return ErrInvalidReference
	}
	return nil
}

func (r CollectionRef) String() string {
	return fmt.Sprintf("%s/%s", r.Path, r.Name)
}
