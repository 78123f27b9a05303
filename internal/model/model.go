// Package model defines the household health records and the JSON snapshot
// they are exchanged in, both for backups and for the remote sync file.
package model

import (
	"fmt"
	"strings"
)

// Category is the kind of person a profile describes.
type Category string

const (
	CategoryAdult Category = "Adult"
	CategoryKid   Category = "Kid"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryAdult || c == CategoryKid
}

// DefaultIllness is used for prescriptions saved without an illness.
const DefaultIllness = "General"

// Record is implemented by every collection element. Ids are unique within
// a collection.
type Record interface {
	RecordID() string
}

// Profile is a person in the household.
type Profile struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Type      Category `json:"type"`
	CreatedAt int64    `json:"createdAt"`
}

func (p Profile) RecordID() string { return p.ID }

// FeverRecord is one temperature reading. Temperature is in °F.
type FeverRecord struct {
	ID          string  `json:"id"`
	UserID      string  `json:"userId"`
	Temperature float64 `json:"temperature"`
	Timestamp   int64   `json:"timestamp"`
	Notes       string  `json:"notes,omitempty"`
}

func (f FeverRecord) RecordID() string { return f.ID }

// Prescription is a medicine prescribed to a profile.
type Prescription struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Illness      string `json:"illness"`
	MedicineName string `json:"medicineName"`
	Dosage       string `json:"dosage"`
	PrescribedBy string `json:"prescribedBy"`
	IsActive     bool   `json:"isActive"`
	Timestamp    int64  `json:"timestamp"`
	Notes        string `json:"notes,omitempty"`
}

func (p Prescription) RecordID() string { return p.ID }

// Provider selects the remote file API.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderS3     Provider = "s3"
)

// SyncConfig describes where the remote snapshot lives and how to reach it.
// It is either present as a whole or absent.
type SyncConfig struct {
	Token      string   `json:"token"`
	Repository string   `json:"repository"`
	Path       string   `json:"path"`
	Provider   Provider `json:"provider,omitempty"`
	Branch     string   `json:"branch,omitempty"`
	Endpoint   string   `json:"endpoint,omitempty"`
}

// EffectiveProvider returns the configured provider, github when unset.
func (c SyncConfig) EffectiveProvider() Provider {
	if c.Provider == "" {
		return ProviderGitHub
	}
	return c.Provider
}

// Validate checks that the required fields are set and the provider is known.
func (c SyncConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Repository) == "" {
		missing = append(missing, "repository")
	}
	if strings.TrimSpace(c.Path) == "" {
		missing = append(missing, "path")
	}
	// S3 may fall back to the default AWS credential chain.
	if strings.TrimSpace(c.Token) == "" && c.EffectiveProvider() != ProviderS3 {
		missing = append(missing, "token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("sync config: missing %s", strings.Join(missing, ", "))
	}
	switch c.EffectiveProvider() {
	case ProviderGitHub, ProviderS3:
	default:
		return fmt.Errorf("sync config: unknown provider %q", c.Provider)
	}
	if c.EffectiveProvider() == ProviderGitHub && !strings.Contains(c.Repository, "/") {
		return fmt.Errorf("sync config: repository must be owner/name, got %q", c.Repository)
	}
	return nil
}

// Redacted returns a copy with the token masked.
func (c SyncConfig) Redacted() SyncConfig {
	c.Token = maskToken(c.Token)
	return c
}

// String never includes the token.
func (c SyncConfig) String() string {
	return fmt.Sprintf("%s:%s/%s", c.EffectiveProvider(), c.Repository, c.Path)
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****"
}
