package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-flow/internal/flow/testutil"
)

func TestRequestCreateOverHTTP(t *testing.T) {
	router, db := setupFlowAPI(t)
	g := testutil.SeedWorkflowGraph(t, db)
	token := testutil.TokenFor(g.Staff)

	w := testutil.DoRequest(router, "POST", "/api/v1/requests", map[string]interface{}{
		"process_id":      g.Process.ID,
		"title":           "business trip",
		"content":         map[string]interface{}{"destination": "shenzhen", "days": 2},
		"note":            "customer visit",
		"stakeholder_ids": []string{g.Leader.ID},
	}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["title"] != "business trip" {
		t.Errorf("Expected title 'business trip', got %v", data["title"])
	}
	if data["current_state_id"] != g.Start.ID {
		t.Errorf("Expected request at start state, got %v", data["current_state_id"])
	}
	if data["user_id"] != g.Staff.ID {
		t.Errorf("Expected requester from token, got %v", data["user_id"])
	}

	// 缺 title 400
	w = testutil.DoRequest(router, "POST", "/api/v1/requests",
		map[string]interface{}{"process_id": g.Process.ID}, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without title, got %d", w.Code)
	}

	// 不存在的流程 404
	w = testutil.DoRequest(router, "POST", "/api/v1/requests",
		map[string]interface{}{"process_id": "ghost", "title": "x"}, token)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown process, got %d: %s", w.Code, w.Body.String())
	}

	// 列表必须带 process_id
	w = testutil.DoRequest(router, "GET", "/api/v1/requests", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 listing without process_id, got %d", w.Code)
	}
	w = testutil.DoRequest(router, "GET", "/api/v1/requests?process_id="+g.Process.ID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 request in list, got %d", len(items))
	}

	// 按发起人列表
	w = testutil.DoRequest(router, "GET", "/api/v1/requests?user_id="+g.Staff.ID, nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	items = testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Errorf("Expected 1 request for staff, got %d", len(items))
	}

	// 归档后拒绝提交
	reqID := items[0].(map[string]interface{})["id"].(string)
	w = testutil.DoRequest(router, "POST", "/api/v1/requests/"+reqID+"/archive", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 archiving, got %d: %s", w.Code, w.Body.String())
	}
	w = testutil.DoRequest(router, "POST",
		"/api/v1/requests/"+reqID+"/actions/"+g.RaiseAction.ID, nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 committing on archived request, got %d", w.Code)
	}
}

func TestRequestCommitFlowOverHTTP(t *testing.T) {
	router, db := setupFlowAPI(t)
	g := testutil.SeedWorkflowGraph(t, db)
	staffToken := testutil.TokenFor(g.Staff)
	leaderToken := testutil.TokenFor(g.Leader)

	w := testutil.DoRequest(router, "POST", "/api/v1/requests", map[string]interface{}{
		"process_id": g.Process.ID,
		"title":      "laptop replacement",
	}, staffToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	reqID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)

	// 起点状态理论可达两个动作
	w = testutil.DoRequest(router, "GET", "/api/v1/requests/"+reqID+"/allowed-actions", nil, staffToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	all := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(all) != 2 {
		t.Errorf("Expected 2 allowed actions at start, got %d", len(all))
	}

	// leader 视角为空
	w = testutil.DoRequest(router, "GET",
		"/api/v1/requests/"+reqID+"/allowed-actions/"+g.Leader.ID, nil, staffToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	forLeader := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"]
	if forLeader != nil {
		if items, ok := forLeader.([]interface{}); ok && len(items) != 0 {
			t.Errorf("Expected no actions for leader at start, got %d", len(items))
		}
	}

	// leader 在起点提交 raise 被 403
	w = testutil.DoRequest(router, "POST",
		"/api/v1/requests/"+reqID+"/actions/"+g.RaiseAction.ID, nil, leaderToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 for leader at start, got %d: %s", w.Code, w.Body.String())
	}
	if testutil.ParseResponse(w)["code"].(float64) != 40300 {
		t.Errorf("Expected code 40300, got %v", testutil.ParseResponse(w)["code"])
	}

	// staff 送审
	w = testutil.DoRequest(router, "POST",
		"/api/v1/requests/"+reqID+"/actions/"+g.RaiseAction.ID, nil, staffToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 raising, got %d: %s", w.Code, w.Body.String())
	}
	data := testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["current_state_id"] != g.Review.ID {
		t.Errorf("Expected review state after raise, got %v", data["current_state_id"])
	}

	// leader 审批通过，请求进入终态
	w = testutil.DoRequest(router, "POST",
		"/api/v1/requests/"+reqID+"/actions/"+g.ApproveAction.ID, nil, leaderToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 approving, got %d: %s", w.Code, w.Body.String())
	}
	data = testutil.ParseResponse(w)["data"].(map[string]interface{})
	if data["current_state_id"] != g.Done.ID {
		t.Errorf("Expected done state, got %v", data["current_state_id"])
	}
	if data["status"] != "done" {
		t.Errorf("Expected request status done, got %v", data["status"])
	}

	// 审计日志:两条，最后一条 active
	w = testutil.DoRequest(router, "GET", "/api/v1/requests/"+reqID+"/request-actions", nil, staffToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	log := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(log) != 2 {
		t.Fatalf("Expected 2 audit rows, got %d", len(log))
	}
	first := log[0].(map[string]interface{})
	last := log[1].(map[string]interface{})
	if first["status"] != "done" || last["status"] != "active" {
		t.Errorf("Expected compacted log, got %v then %v", first["status"], last["status"])
	}

	// 终态提交任何动作都 403
	w = testutil.DoRequest(router, "POST",
		"/api/v1/requests/"+reqID+"/actions/"+g.RaiseAction.ID, nil, staffToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 at terminal state, got %d", w.Code)
	}

	// 不存在的请求 404
	w = testutil.DoRequest(router, "GET", "/api/v1/requests/ghost", nil, staffToken)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown request, got %d", w.Code)
	}
}
