package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileBindingRepository implements BindingRepository using file-based
// storage, so the identity binding survives restarts without a database.
type FileBindingRepository struct {
	dataDir string
	binding *IdentityBinding
	mutex   sync.RWMutex
}

// bindingData represents the structure of data stored in the JSON file
type bindingData struct {
	Binding *IdentityBinding `json:"binding"`
}

// NewFileBindingRepository creates a new file-based binding repository
func NewFileBindingRepository(dataDir string) (*FileBindingRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileBindingRepository{
		dataDir: dataDir,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// GetBinding returns the current binding, or nil when unbound
func (r *FileBindingRepository) GetBinding(ctx context.Context) (*IdentityBinding, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.binding == nil {
		return nil, nil
	}
	binding := *r.binding
	return &binding, nil
}

// BindIdentity records the binding if none exists and returns the
// effective binding
func (r *FileBindingRepository) BindIdentity(ctx context.Context, issuer, subject string) (*IdentityBinding, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.binding != nil {
		binding := *r.binding
		return &binding, nil
	}

	r.binding = &IdentityBinding{
		Issuer:  issuer,
		Subject: subject,
		BoundAt: time.Now().UTC(),
	}

	if err := r.save(); err != nil {
		r.binding = nil
		return nil, fmt.Errorf("failed to save: %w", err)
	}

	binding := *r.binding
	return &binding, nil
}

// ClearBinding removes the binding
func (r *FileBindingRepository) ClearBinding(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.binding = nil
	return r.save()
}

// load reads binding data from file
func (r *FileBindingRepository) load() error {
	filePath := filepath.Join(r.dataDir, "identity_binding.json")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var fileData bindingData
	if err := json.Unmarshal(data, &fileData); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.binding = fileData.Binding
	return nil
}

// save writes binding data to file atomically
func (r *FileBindingRepository) save() error {
	jsonData, err := json.MarshalIndent(bindingData{Binding: r.binding}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := filepath.Join(r.dataDir, "identity_binding.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(r.dataDir, "identity_binding.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
