package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meshgraph/internal/audit"
	"meshgraph/internal/bus"
	"meshgraph/internal/config"
	"meshgraph/internal/registry"
)

func TestRegisterHeartbeatAgentsDeregister(t *testing.T) {
	reg := registry.New(func() config.MeshConfig {
		return config.MeshConfig{Enabled: true, HeartbeatIntervalSecs: 30, StaleTimeoutSecs: 90, LeaderElection: true}
	}, audit.NoopRecorder{})
	srv := NewServer("self", reg, bus.New(0, 0))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	regBody, _ := json.Marshal(registerRequest{IID: "peer-a", Address: ts.URL})
	resp, err := http.Post(ts.URL+"/registry/register", "application/json", bytes.NewReader(regBody))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("register failed: %v status=%v", err, resp)
	}
	var regResp registerResponse
	json.NewDecoder(resp.Body).Decode(&regResp)
	resp.Body.Close()
	if regResp.LeaderID != "peer-a" {
		t.Fatalf("expected peer-a to become leader, got %+v", regResp)
	}

	hbBody, _ := json.Marshal(heartbeatRequest{Status: "ok"})
	resp, err = http.Post(ts.URL+"/registry/heartbeat/peer-a", "application/json", bytes.NewReader(hbBody))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("heartbeat failed: %v", err)
	}
	var hbResp heartbeatResponse
	json.NewDecoder(resp.Body).Decode(&hbResp)
	resp.Body.Close()
	if !hbResp.Ack {
		t.Fatalf("expected heartbeat to be acked")
	}

	resp, err = http.Get(ts.URL + "/registry/agents")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("agents failed: %v", err)
	}
	var peers []registry.Peer
	json.NewDecoder(resp.Body).Decode(&peers)
	resp.Body.Close()
	if len(peers) != 1 || peers[0].IID != "peer-a" {
		t.Fatalf("expected one peer peer-a, got %+v", peers)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/registry/deregister/peer-a", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("deregister failed: %v", err)
	}
	resp.Body.Close()

	if len(reg.ListPeers(nil)) != 0 {
		t.Fatalf("expected peer-a to be gone after deregister")
	}
}

func TestMessagesSendGetAck(t *testing.T) {
	reg := registry.New(func() config.MeshConfig { return config.MeshConfig{} }, audit.NoopRecorder{})
	b := bus.New(0, 0)
	srv := NewServer("self", reg, b)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	env := bus.Envelope{
		MessageID: "m1", SourceIID: "peer-a", DestIID: "self",
		Kind: bus.KindNotification, Payload: []byte(`"hello"`), Timestamp: time.Now(),
	}
	body, _ := json.Marshal(env)
	resp, err := http.Post(ts.URL+"/messages/send/peer-a", "application/json", bytes.NewReader(body))
	if err != nil || resp.StatusCode != http.StatusAccepted {
		t.Fatalf("send failed: %v status=%v", err, resp)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/messages/self")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get pending failed: %v", err)
	}
	var pending []bus.Envelope
	json.NewDecoder(resp.Body).Decode(&pending)
	resp.Body.Close()
	if len(pending) != 1 || pending[0].MessageID != "m1" {
		t.Fatalf("expected one pending message m1, got %+v", pending)
	}

	ackBody, _ := json.Marshal([]string{"m1"})
	resp, err = http.Post(ts.URL+"/messages/ack/self", "application/json", bytes.NewReader(ackBody))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("ack failed: %v", err)
	}
	var ackResp ackResponse
	json.NewDecoder(resp.Body).Decode(&ackResp)
	resp.Body.Close()
	if ackResp.Acked != 1 {
		t.Fatalf("expected one message acked, got %+v", ackResp)
	}

	resp, _ = http.Get(ts.URL + "/messages/self")
	json.NewDecoder(resp.Body).Decode(&pending)
	resp.Body.Close()
	if len(pending) != 0 {
		t.Fatalf("expected no pending messages after ack, got %+v", pending)
	}
}
