package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

func TestActorFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  map[string]interface{}
		want    model.Actor
		wantErr bool
	}{
		{
			name:   "Owner",
			claims: map[string]interface{}{"sub": "alice@example.com"},
			want:   model.Owner("alice@example.com"),
		},
		{
			name:   "Moderator group",
			claims: map[string]interface{}{"sub": "mod", "groups": []interface{}{"everyone", "moderators"}},
			want:   model.Moderator("mod"),
		},
		{
			name:   "Other groups only",
			claims: map[string]interface{}{"sub": "bob", "groups": []interface{}{"everyone"}},
			want:   model.Owner("bob"),
		},
		{
			name:   "uid fallback",
			claims: map[string]interface{}{"uid": "00u1"},
			want:   model.Owner("00u1"),
		},
		{
			name:    "No subject",
			claims:  map[string]interface{}{"groups": []interface{}{"moderators"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := actorFromClaims(tt.claims, "moderators")
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDevVerifier(t *testing.T) {
	v := DevVerifier{}
	ctx := context.Background()

	got, err := v.Verify(ctx, "dev:alice")
	require.NoError(t, err)
	assert.Equal(t, model.Owner("alice"), got)

	got, err = v.Verify(ctx, "dev:mod:moderator")
	require.NoError(t, err)
	assert.True(t, got.IsModerator())

	for _, bad := range []string{"", "alice", "dev:", "dev:alice:admin", "prod:alice", "dev:a:b:c"} {
		_, err := v.Verify(ctx, bad)
		assert.ErrorIs(t, err, model.ErrUnauthenticated, bad)
	}
}

func TestNew(t *testing.T) {
	v, err := New(&config.AuthConfig{Mode: "dev"})
	require.NoError(t, err)
	assert.IsType(t, DevVerifier{}, v)

	_, err = New(&config.AuthConfig{Mode: "ldap"})
	assert.Error(t, err)
}
