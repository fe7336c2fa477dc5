package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ekubengine "ekub/contexts/savings-core/ekub-engine"
	httptransport "ekub/contexts/savings-core/ekub-engine/transport/http"
)

func newTestServer(t *testing.T) (*Server, ekubengine.Module) {
	t.Helper()
	module := ekubengine.NewInMemoryModule(nil, nil)
	return New(module, nil, ":0"), module
}

func doJSON(t *testing.T, server *Server, method, path, userID, idemKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func createGroupViaHTTP(t *testing.T, server *Server) string {
	t.Helper()
	resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups", "member-1", "idem-1",
		`{"name":"equb circle","contribution_amount":100,"frequency":"weekly","max_members":2}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", resp.Code, resp.Body.String())
	}
	var created httptransport.CreateGroupResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created.Group.GroupID
}

func TestCreateGroupEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	// Mutations need an authenticated caller.
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups", "", "idem-1", `{}`); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without X-User-Id, got %d", resp.Code)
	}
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups", "member-1", "", `{"name":"x","contribution_amount":1,"frequency":"weekly","max_members":2}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key, got %d", resp.Code)
	}
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups", "member-1", "idem-1", `{not json`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", resp.Code)
	}

	groupID := createGroupViaHTTP(t, server)

	// A replay comes back 200, not 201.
	replay := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups", "member-1", "idem-1",
		`{"name":"equb circle","contribution_amount":100,"frequency":"weekly","max_members":2}`)
	if replay.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", replay.Code)
	}

	status := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups/"+groupID, "", "", "")
	if status.Code != http.StatusOK {
		t.Fatalf("status returned %d", status.Code)
	}
	if resp := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups/nope", "", "", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown group, got %d", resp.Code)
	}
}

func TestContributionEndpointStatusMapping(t *testing.T) {
	server, module := newTestServer(t)
	groupID := createGroupViaHTTP(t, server)

	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/join", "member-2", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("join returned %d: %s", resp.Code, resp.Body.String())
	}
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/activate", "member-1", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("activate returned %d: %s", resp.Code, resp.Body.String())
	}

	// Unfunded wallet surfaces as 422.
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/contributions", "member-1", "", ""); resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient funds, got %d: %s", resp.Code, resp.Body.String())
	}

	module.Wallet.Deposit("member-1", 100)
	module.Wallet.Deposit("member-2", 100)
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/contributions", "member-1", "", ""); resp.Code != http.StatusCreated {
		t.Fatalf("contribute returned %d: %s", resp.Code, resp.Body.String())
	}
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/contributions", "member-1", "", ""); resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate contribution, got %d", resp.Code)
	}
	if resp := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/contributions", "member-9", "", ""); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", resp.Code)
	}

	last := doJSON(t, server, http.MethodPost, "/api/ekub/v1/groups/"+groupID+"/contributions", "member-2", "", "")
	if last.Code != http.StatusCreated {
		t.Fatalf("final contribute returned %d: %s", last.Code, last.Body.String())
	}
	var result httptransport.ContributeResponse
	if err := json.Unmarshal(last.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode contribute response: %v", err)
	}
	if !result.CycleCompleted || !result.PayoutIssued {
		t.Fatalf("two-member cycle should complete and pay out, got %+v", result)
	}

	ledger := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups/"+groupID+"/ledger", "", "", "")
	if ledger.Code != http.StatusOK {
		t.Fatalf("ledger returned %d", ledger.Code)
	}
	var entries httptransport.LedgerResponse
	if err := json.Unmarshal(ledger.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(entries.Entries) != 3 {
		t.Fatalf("expected 2 contributions and 1 payout in the ledger, got %d entries", len(entries.Entries))
	}
}

func TestListGroupsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	createGroupViaHTTP(t, server)

	resp := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups?member_id=member-1", "", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list returned %d", resp.Code)
	}
	var list httptransport.ListGroupsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected one group for member-1, got %d", len(list.Items))
	}

	mine := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups?mine=true", "member-1", "", "")
	if mine.Code != http.StatusOK {
		t.Fatalf("mine list returned %d", mine.Code)
	}
	if err := json.Unmarshal(mine.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode mine list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected one group via mine=true, got %d", len(list.Items))
	}

	none := doJSON(t, server, http.MethodGet, "/api/ekub/v1/groups?member_id=member-9", "", "", "")
	if err := json.Unmarshal(none.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode empty list: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("expected no groups for outsider, got %d", len(list.Items))
	}
}
