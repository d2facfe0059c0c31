package main

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"secret.share/config"
	"secret.share/internal/api"
)

func TestNewServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := newServer(context.WithoutCancel(ctx), config.Default(), http.NotFoundHandler())

	t.Run("router timeout fires before the write deadline", func(t *testing.T) {
		require.Greater(t, server.WriteTimeout, api.RequestTimeout)
	})

	t.Run("requests survive the shutdown signal", func(t *testing.T) {
		cancel()
		base := server.BaseContext(&net.TCPListener{})
		require.NoError(t, base.Err())
	})
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"

	logger, err := newLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	cfg.Log.Level = "loud"
	_, err = newLogger(cfg)
	require.Error(t, err)
}
