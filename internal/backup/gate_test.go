package backup

import (
	"errors"
	"testing"

	"github.com/MacJediWizard/firekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlistPolicy(t *testing.T) {
	t.Run("empty allows everything", func(t *testing.T) {
		p := NewAllowlistPolicy(nil)
		assert.False(t, p.IsRestricted())
		assert.True(t, p.Allows("any-bucket"))
	})

	t.Run("blank entries ignored", func(t *testing.T) {
		p := NewAllowlistPolicy([]string{" ", ""})
		assert.False(t, p.IsRestricted())
	})

	t.Run("restricted", func(t *testing.T) {
		p := NewAllowlistPolicy([]string{"b2", " b1 "})
		assert.True(t, p.IsRestricted())
		assert.True(t, p.Allows("b1"))
		assert.True(t, p.Allows("b2"))
		assert.False(t, p.Allows("b3"))
		assert.Equal(t, []string{"b1", "b2"}, p.Buckets())
	})
}

func TestGate_Admit(t *testing.T) {
	gate := NewGate(NewAllowlistPolicy([]string{"allowed"}))

	tests := []struct {
		name       string
		req        models.BackupRequest
		wantField  string
		wantPolicy bool
	}{
		{
			name: "valid identities",
			req:  models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed", Path: "auth/users.json"},
		},
		{
			name: "valid documents with collections and trailing slash",
			req: models.BackupRequest{
				Kind:        models.BackupKindDocuments,
				StorageID:   "allowed",
				Path:        "firestore/2024-01-01/",
				Collections: []string{"users"},
			},
		},
		{
			name:      "missing storage id",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, Path: "users.json"},
			wantField: "storageId",
		},
		{
			name:      "missing path",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed"},
			wantField: "path",
		},
		{
			name:      "missing kind",
			req:       models.BackupRequest{StorageID: "allowed", Path: "users.json"},
			wantField: "kind",
		},
		{
			name:      "unknown kind",
			req:       models.BackupRequest{Kind: "rtdb", StorageID: "allowed", Path: "users.json"},
			wantField: "kind",
		},
		{
			name:      "absolute path",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed", Path: "/users.json"},
			wantField: "path",
		},
		{
			name:      "parent segment",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed", Path: "a/../users.json"},
			wantField: "path",
		},
		{
			name:      "empty segment",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed", Path: "a//users.json"},
			wantField: "path",
		},
		{
			name:      "identities path ending in slash",
			req:       models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "allowed", Path: "auth/"},
			wantField: "path",
		},
		{
			name: "collections on identities",
			req: models.BackupRequest{
				Kind:        models.BackupKindIdentities,
				StorageID:   "allowed",
				Path:        "users.json",
				Collections: []string{"users"},
			},
			wantField: "collections",
		},
		{
			name: "blank collection id",
			req: models.BackupRequest{
				Kind:        models.BackupKindDocuments,
				StorageID:   "allowed",
				Path:        "fs",
				Collections: []string{""},
			},
			wantField: "collections[0]",
		},
		{
			name:       "bucket outside allowlist",
			req:        models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "other", Path: "users.json"},
			wantPolicy: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Admit(tt.req)

			switch {
			case tt.wantField != "":
				var ve *ValidationError
				require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
				assert.Equal(t, tt.wantField, ve.Field)
				assert.True(t, IsRejection(err))
			case tt.wantPolicy:
				var pv *PolicyViolationError
				require.True(t, errors.As(err, &pv), "expected PolicyViolationError, got %v", err)
				assert.Equal(t, tt.req.StorageID, pv.Bucket)
				assert.True(t, IsRejection(err))
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestGate_AdmitWithoutAllowlist(t *testing.T) {
	gate := NewGate(NewAllowlistPolicy(nil))

	err := gate.Admit(models.BackupRequest{Kind: models.BackupKindIdentities, StorageID: "anything", Path: "users.json"})
	assert.NoError(t, err)
}

func TestGate_AdmitBucket(t *testing.T) {
	gate := NewGate(NewAllowlistPolicy([]string{"allowed"}))

	assert.NoError(t, gate.AdmitBucket("allowed"))

	var ve *ValidationError
	assert.True(t, errors.As(gate.AdmitBucket(" "), &ve))

	var pv *PolicyViolationError
	assert.True(t, errors.As(gate.AdmitBucket("other"), &pv))
}

func TestIsRejection(t *testing.T) {
	assert.False(t, IsRejection(nil))
	assert.False(t, IsRejection(errors.New("boom")))
	assert.False(t, IsRejection(&ExportError{Err: errors.New("boom")}))
	assert.True(t, IsRejection(&ValidationError{Field: "path", Reason: "is required"}))
	assert.True(t, IsRejection(&PolicyViolationError{Bucket: "b"}))
}
