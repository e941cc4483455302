package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/worksync/internal/client/storage"
)

func TestEnsureDeviceID(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		stored    string
		getErr    error
		saveErr   error
		wantErr   error
		wantSaved bool
	}{
		{name: "existing id is reused", stored: "device-1"},
		{name: "new id is generated and saved", wantSaved: true},
		{name: "read error", getErr: errBoom, wantErr: errBoom},
		{name: "save error", saveErr: errBoom, wantErr: errBoom, wantSaved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := &storage.MetadataStorageMock{
				GetDeviceIDFunc: func(ctx context.Context) (string, error) {
					return tt.stored, tt.getErr
				},
				SaveDeviceIDFunc: func(ctx context.Context, deviceID string) error {
					return tt.saveErr
				},
			}

			id, err := ensureDeviceID(context.Background(), meta)
			assert.Equal(t, tt.wantSaved, len(meta.SaveDeviceIDCalls()) == 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			if tt.stored != "" {
				assert.Equal(t, tt.stored, id)
				return
			}
			_, parseErr := uuid.Parse(id)
			assert.NoError(t, parseErr)
			assert.Equal(t, id, meta.SaveDeviceIDCalls()[0].DeviceID)
		})
	}
}

func TestResolveID(t *testing.T) {
	keys := []string{"abc123", "abd456", "xyz", "xy"}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr string
	}{
		{name: "exact", ref: "xyz", want: "xyz"},
		{name: "exact wins over prefix", ref: "xy", want: "xy"},
		{name: "unique prefix", ref: "abc", want: "abc123"},
		{name: "ambiguous prefix", ref: "ab", wantErr: "ambiguous"},
		{name: "no match", ref: "q", wantErr: "no item matches"},
		{name: "empty", ref: "  ", wantErr: "id cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveID(keys, tt.ref)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
