package main

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/ajramos/echomail/internal/config"
	"github.com/ajramos/echomail/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlags(cfg, "", "  ")
	assert.Equal(t, config.BackendServer, cfg.Backend)
	assert.Equal(t, "http://localhost:5000/api", cfg.Server.BaseURL)

	applyFlags(cfg, " gmail ", "https://mail.example.com/api")
	assert.Equal(t, config.BackendGmail, cfg.Backend)
	assert.Equal(t, "https://mail.example.com/api", cfg.Server.BaseURL)
}

func TestConnect_Server(t *testing.T) {
	cfg := config.DefaultConfig()
	sess, err := connect(context.Background(), cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	assert.NotNil(t, sess.backend)
	assert.NotNil(t, sess.assistant)
	assert.NotNil(t, sess.contacts)
	assert.NotNil(t, sess.summarizer)
}

func TestConnect_GmailMissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendGmail
	cfg.Gmail.Credentials = filepath.Join(t.TempDir(), "missing.json")
	cfg.Gmail.Token = filepath.Join(t.TempDir(), "token.json")

	_, err := connect(context.Background(), cfg, log.New(io.Discard, "", 0))
	assert.Error(t, err)
}

func TestConnect_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Backend = "imap"
	_, err := connect(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestSummarizerFor(t *testing.T) {
	cfg := config.DefaultConfig()
	sess, err := connect(context.Background(), cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)

	s, err := summarizerFor(cfg, sess)
	require.NoError(t, err)
	assert.Equal(t, sess.summarizer, s)

	_, err = summarizerFor(cfg, &session{})
	assert.ErrorContains(t, err, "no summarize endpoint")

	cfg.Summary.Provider = config.SummaryProviderOllama
	cfg.Summary.Model = "llama3"
	s, err = summarizerFor(cfg, &session{})
	require.NoError(t, err)
	assert.IsType(t, &llm.Summarizer{}, s)
}
