package presentation

import (
	"time"

	domain "github.com/zjrosen/reliq/internal/domain/catalog"
	"github.com/zjrosen/reliq/internal/infrastructure/journal"
)

// ArtifactDTO represents a registered artifact for presentation
type ArtifactDTO struct {
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	FilePath       string         `json:"file_path"`
	ContentHash    string         `json:"content_hash"`
	SizeBytes      int64          `json:"size_bytes"`
	CreatedAt      time.Time      `json:"created_at"`
	InputArtifacts []string       `json:"input_artifacts,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// OperationDTO represents one journal entry for presentation
type OperationDTO struct {
	ID        string    `json:"id"`
	Verb      string    `json:"verb"`
	Artifacts []string  `json:"artifacts,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromDomainArtifact converts a domain artifact to a DTO
func FromDomainArtifact(a domain.Artifact) ArtifactDTO {
	return ArtifactDTO{
		Name:           a.Name,
		Type:           a.Type,
		FilePath:       a.FilePath,
		ContentHash:    a.ContentHash,
		SizeBytes:      a.SizeBytes,
		CreatedAt:      a.CreatedAt,
		InputArtifacts: a.InputArtifacts,
		Metadata:       a.Metadata,
	}
}

// FromDomainArtifacts converts a slice of domain artifacts to DTOs
func FromDomainArtifacts(artifacts []domain.Artifact) []ArtifactDTO {
	dtos := make([]ArtifactDTO, len(artifacts))
	for i, a := range artifacts {
		dtos[i] = FromDomainArtifact(a)
	}
	return dtos
}

// FromJournalEntry converts a journal entry to a DTO
func FromJournalEntry(e journal.Entry) OperationDTO {
	return OperationDTO{
		ID:        e.ID,
		Verb:      e.Verb,
		Artifacts: e.Artifacts,
		Outcome:   e.Outcome,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt,
	}
}

// FromJournalEntries converts a slice of journal entries to DTOs
func FromJournalEntries(entries []journal.Entry) []OperationDTO {
	dtos := make([]OperationDTO, len(entries))
	for i, e := range entries {
		dtos[i] = FromJournalEntry(e)
	}
	return dtos
}
