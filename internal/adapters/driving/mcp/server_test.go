package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("nil generation service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingGenerationService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Generation: &mockGenerationService{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil generation service returns error", func(t *testing.T) {
		assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingGenerationService)
	})

	t.Run("generation only is valid", func(t *testing.T) {
		assert.NoError(t, (&Ports{Generation: &mockGenerationService{}}).Validate())
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{
			Generation: &mockGenerationService{},
			Verifier:   &mockVerifierService{},
			FactSheet:  &mockFactSheetService{},
		}
		assert.NoError(t, ports.Validate())
	})
}

func TestServer_RunHTTP_StopsOnCancel(t *testing.T) {
	server, err := NewServer(&Ports{Generation: &mockGenerationService{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.RunHTTP(ctx, "127.0.0.1:0")
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RunHTTP did not return after cancel")
	}
}
