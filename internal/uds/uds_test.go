package uds

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), DefaultSocketName)
	server := NewServer(socketPath)
	require.NoError(t, server.Start())
	t.Cleanup(func() { server.Stop() })
	return server, socketPath
}

func TestRequestResponse(t *testing.T) {
	server, socketPath := startServer(t)

	server.Handle("ping", func(req *Request) *Response {
		return SuccessResponse(map[string]string{"status": "ok"})
	})

	client := NewClient(socketPath)
	resp, err := client.SendCommand("ping", nil)
	require.NoError(t, err)
	require.True(t, resp.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "ok", data["status"])
}

func TestRequestParams(t *testing.T) {
	server, socketPath := startServer(t)

	type triggerParams struct {
		Date string `json:"date"`
	}

	server.Handle("trigger", func(req *Request) *Response {
		var params triggerParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(ErrCodeValidation, err.Error())
		}
		return SuccessResponse(map[string]string{"date": params.Date})
	})

	client := NewClient(socketPath)
	resp, err := client.SendCommand("trigger", triggerParams{Date: "2026-08-29"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "2026-08-29", data["date"])
}

func TestUnknownCommand(t *testing.T) {
	_, socketPath := startServer(t)

	client := NewClient(socketPath)
	resp, err := client.SendCommand("nope", nil)
	require.NoError(t, err)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnknownCommand, resp.Error.Code)
}

func TestProtocolMismatch(t *testing.T) {
	_, socketPath := startServer(t)

	client := NewClient(socketPath)
	resp, err := client.Send(&Request{ProtocolVersion: 99, Command: "ping"})
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeProtocolMismatch, resp.Error.Code)
}

func TestErrorResponseRoundTrip(t *testing.T) {
	server, socketPath := startServer(t)

	server.Handle("status", func(req *Request) *Response {
		return ErrorResponse(ErrCodeNotFound, "no plan stored for 2026-08-29")
	})

	client := NewClient(socketPath)
	resp, err := client.SendCommand("status", nil)
	require.NoError(t, err)
	require.False(t, resp.Success)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "no plan stored")
}

func TestClientConnectFailure(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "absent.sock"))
	client.SetTimeout(time.Second)

	_, err := client.Send(&Request{ProtocolVersion: ProtocolVersion, Command: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dayplan watch")
}

func TestServerStopRemovesSocket(t *testing.T) {
	server, socketPath := startServer(t)
	require.NoError(t, server.Stop())

	client := NewClient(socketPath)
	client.SetTimeout(time.Second)
	_, err := client.SendCommand("ping", nil)
	require.Error(t, err)
}
