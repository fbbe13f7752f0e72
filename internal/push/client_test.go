package push

import (
	"bytes"
	contextpkg "context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newCapturingGateway(testContext *testing.T, statusCode int, responseBody string, captured *[]byte) *httptest.Server {
	testContext.Helper()
	return httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(request.Body)
		if err != nil {
			testContext.Errorf("failed to read request body: %v", err)
		}
		*captured = body
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(statusCode)
		_, _ = writer.Write([]byte(responseBody))
	}))
}

func TestSendSingleMessageUsesBareObjectShape(testContext *testing.T) {
	var captured []byte
	gateway := newCapturingGateway(testContext, http.StatusOK, `{"data":{"status":"ok","id":"ticket-1"}}`, &captured)
	defer gateway.Close()

	client, err := NewClient(ClientConfig{URL: gateway.URL})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	tickets, err := client.Send(contextpkg.Background(), []Message{
		{To: "token-a", Title: "Sale", Body: "New arrivals", Sound: defaultSound},
	})
	if err != nil {
		testContext.Fatalf("send failed: %v", err)
	}

	trimmed := bytes.TrimSpace(captured)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		testContext.Fatalf("expected bare object payload for one message, got %s", trimmed)
	}
	var payload map[string]any
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		testContext.Fatalf("failed to decode captured payload: %v", err)
	}
	if payload["to"] != "token-a" {
		testContext.Fatalf("unexpected recipient: %v", payload["to"])
	}
	if payload["sound"] != "default" {
		testContext.Fatalf("expected default sound flag, got %v", payload["sound"])
	}
	if len(tickets) != 1 || tickets[0].Status != TicketStatusOK {
		testContext.Fatalf("unexpected tickets: %+v", tickets)
	}
}

func TestSendMultipleMessagesUsesArrayShape(testContext *testing.T) {
	var captured []byte
	gateway := newCapturingGateway(testContext, http.StatusOK,
		`{"data":[{"status":"ok","id":"t1"},{"status":"error","message":"DeviceNotRegistered"}]}`, &captured)
	defer gateway.Close()

	client, err := NewClient(ClientConfig{URL: gateway.URL})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	tickets, err := client.Send(contextpkg.Background(), []Message{
		{To: "token-a", Title: "Sale", Body: "New arrivals", Sound: defaultSound},
		{To: "token-b", Title: "Sale", Body: "New arrivals", Sound: defaultSound},
	})
	if err != nil {
		testContext.Fatalf("send failed: %v", err)
	}

	trimmed := bytes.TrimSpace(captured)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		testContext.Fatalf("expected array payload for two messages, got %s", trimmed)
	}
	if len(tickets) != 2 {
		testContext.Fatalf("expected 2 tickets, got %d", len(tickets))
	}
	if tickets[0].Status != TicketStatusOK {
		testContext.Fatalf("expected first ticket ok, got %+v", tickets[0])
	}
	if tickets[1].Status != TicketStatusError || tickets[1].Message != "DeviceNotRegistered" {
		testContext.Fatalf("expected second ticket error, got %+v", tickets[1])
	}
}

func TestSendSurfacesTopLevelGatewayErrors(testContext *testing.T) {
	var captured []byte
	gateway := newCapturingGateway(testContext, http.StatusOK,
		`{"errors":[{"code":"PUSH_TOO_MANY_REQUESTS","message":"rate limited"}]}`, &captured)
	defer gateway.Close()

	client, err := NewClient(ClientConfig{URL: gateway.URL})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	_, err = client.Send(contextpkg.Background(), []Message{{To: "token-a", Title: "t", Body: "b"}})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		testContext.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.Message != "rate limited" {
		testContext.Fatalf("unexpected gateway message: %q", gatewayErr.Message)
	}
}

func TestSendTreatsSingleErrorTicketForBatchAsGatewayError(testContext *testing.T) {
	var captured []byte
	gateway := newCapturingGateway(testContext, http.StatusOK,
		`{"data":{"status":"error","message":"malformed request"}}`, &captured)
	defer gateway.Close()

	client, err := NewClient(ClientConfig{URL: gateway.URL})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	_, err = client.Send(contextpkg.Background(), []Message{
		{To: "token-a", Title: "t", Body: "b"},
		{To: "token-b", Title: "t", Body: "b"},
	})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		testContext.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.Message != "malformed request" {
		testContext.Fatalf("unexpected gateway message: %q", gatewayErr.Message)
	}
}

func TestSendRejectsErrorStatusCodes(testContext *testing.T) {
	var captured []byte
	gateway := newCapturingGateway(testContext, http.StatusBadGateway, `upstream unavailable`, &captured)
	defer gateway.Close()

	client, err := NewClient(ClientConfig{URL: gateway.URL})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	_, err = client.Send(contextpkg.Background(), []Message{{To: "token-a", Title: "t", Body: "b"}})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		testContext.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestSendWithoutMessagesSkipsNetworkCall(testContext *testing.T) {
	client, err := NewClient(ClientConfig{URL: "http://127.0.0.1:1"})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	tickets, err := client.Send(contextpkg.Background(), nil)
	if err != nil {
		testContext.Fatalf("expected no error for empty send, got %v", err)
	}
	if tickets != nil {
		testContext.Fatalf("expected no tickets, got %+v", tickets)
	}
}

func TestNewClientRequiresURL(testContext *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		testContext.Fatalf("expected error for missing gateway url")
	}
}

func TestNewClientLeavesProvidedHTTPClientUntouched(testContext *testing.T) {
	shared := &http.Client{Timeout: 3 * time.Second}

	client, err := NewClient(ClientConfig{
		URL:        "http://gateway.invalid/send",
		Timeout:    7 * time.Second,
		HTTPClient: shared,
	})
	if err != nil {
		testContext.Fatalf("failed to build client: %v", err)
	}

	if shared.Timeout != 3*time.Second {
		testContext.Fatalf("expected shared client timeout to stay 3s, got %v", shared.Timeout)
	}
	if client.httpClient.Timeout != 7*time.Second {
		testContext.Fatalf("expected configured timeout 7s, got %v", client.httpClient.Timeout)
	}
	if client.httpClient == shared {
		testContext.Fatalf("expected client to hold its own http.Client copy")
	}
}
