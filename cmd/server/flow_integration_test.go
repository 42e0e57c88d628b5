//go:build integration

package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soaringjerry/Vox/internal/audio"
	"github.com/soaringjerry/Vox/internal/client"
	"github.com/soaringjerry/Vox/internal/services"
)

// baseURL points at VOX_TEST_BASE_URL when set, otherwise at an in-process
// server with a fresh SQLite database.
func baseURL(t *testing.T) string {
	if v := strings.TrimSpace(os.Getenv("VOX_TEST_BASE_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return startServer(t, testConfig(t, "sqlite"))
}

func TestOnboardingAndAdminJourney(t *testing.T) {
	ctx := context.Background()
	c := client.New(baseURL(t), 5*time.Second)

	qs, err := c.Questions(ctx, "en")
	require.NoError(t, err)
	require.Len(t, qs, services.QuestionCount)

	userID := uuid.NewString()
	wav, ok := audio.Lookup(audio.MIMEWav)
	require.True(t, ok)
	payload, err := wav.Encode([][]byte{{1, 0, 2, 0}}, audio.Params{SampleRate: 16000, Channels: 1})
	require.NoError(t, err)
	for _, q := range qs {
		res, err := c.Upload(ctx, userID, q.ID, audio.MIMEWav, "answer.wav", payload)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.ObjectKey, userID+"/"))
	}

	_, err = c.VerifyPassword(ctx, "wrong")
	require.ErrorIs(t, err, client.ErrUnauthorized)

	login, err := c.VerifyPassword(ctx, "correct")
	require.NoError(t, err)
	require.Len(t, login.SessionToken, 64)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), login.ExpiresAt, time.Minute)
	token := login.SessionToken

	recs, err := c.ListRecordings(ctx, token)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(recs), services.QuestionCount)
	assert.Equal(t, services.QuestionCount, recs[0].QuestionID)

	signed, err := c.DownloadURL(ctx, token, client.DownloadRequest{RecordingID: recs[0].ID})
	require.NoError(t, err)
	data, err := c.Fetch(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = c.ManageRoles(ctx, token, "list", "x", services.RoleAdmin)
	require.ErrorIs(t, err, client.ErrForbidden)

	_, err = c.SetupInitialAdmin(ctx, "setup", services.PasswordUserID)
	if err != nil {
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr), "unexpected error %v", err)
		assert.Equal(t, 400, apiErr.Status)
	}
	roles, err := c.ManageRoles(ctx, token, "list", "x", services.RoleAdmin)
	if err == nil {
		assert.True(t, roles.Success)
	}

	ok, err = c.CheckWhitelist(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.SignOut(ctx, token))
	_, err = c.ListRecordings(ctx, token)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}
