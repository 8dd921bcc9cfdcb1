package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestCreateRequestRoundTrip(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	content := map[string]interface{}{"days": 3, "reason": "family vacation"}
	created, err := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID:      g.Process.ID,
		Title:          "leave for next week",
		Content:        content,
		Note:           "please approve before friday",
		StakeholderIDs: []string{g.Leader.ID, g.Staff.ID},
	}, g.Staff.ID)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// 新请求落在起点状态
	if created.CurrentStateID != g.Start.ID {
		t.Fatalf("expected request to start at %s, got %s", g.Start.ID, created.CurrentStateID)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	found, err := svc.Request.FindOneRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("find request failed: %v", err)
	}
	if found.Title != "leave for next week" {
		t.Fatalf("title mismatch: %q", found.Title)
	}

	if len(found.Data) != 1 {
		t.Fatalf("expected 1 data record, got %d", len(found.Data))
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(found.Data[0].Value), &decoded); err != nil {
		t.Fatalf("content is not valid json: %v", err)
	}
	if decoded["reason"] != "family vacation" || decoded["days"] != float64(3) {
		t.Fatalf("content mismatch: %v", decoded)
	}

	if len(found.Notes) != 1 {
		t.Fatalf("expected 1 opening note, got %d", len(found.Notes))
	}
	if found.Notes[0].Note != "please approve before friday" || found.Notes[0].NoteType != entity.NoteTypeUser {
		t.Fatalf("opening note mismatch: %+v", found.Notes[0])
	}

	// 干系人按传入顺序返回
	if len(found.Stakeholders) != 2 {
		t.Fatalf("expected 2 stakeholders, got %d", len(found.Stakeholders))
	}
	if found.Stakeholders[0].StakeholderID != g.Leader.ID || found.Stakeholders[1].StakeholderID != g.Staff.ID {
		t.Fatalf("stakeholder order not preserved: %+v", found.Stakeholders)
	}
}

func TestCreateRequestMissingProcess(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	_, err := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: "no-such-process",
		Title:     "ghost",
	}, g.Staff.ID)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "ghost",
	}, "no-such-user")
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestAllowedActionsAndPermissionFilter(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, err := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "trip request",
	}, g.Staff.ID)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// 起点状态的理论可达动作：edit + raise
	actions, err := svc.Request.AllowedActions(ctx, req.ID)
	if err != nil {
		t.Fatalf("allowed actions failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 allowed actions, got %d", len(actions))
	}

	// staff 两个都能做
	staffActions, err := svc.Request.AllowedActionsForUser(ctx, req.ID, g.Staff.ID)
	if err != nil {
		t.Fatalf("allowed actions for staff failed: %v", err)
	}
	if len(staffActions) != 2 {
		t.Fatalf("expected 2 actions for staff, got %d", len(staffActions))
	}

	// leader 在起点状态什么都做不了
	leaderActions, err := svc.Request.AllowedActionsForUser(ctx, req.ID, g.Leader.ID)
	if err != nil {
		t.Fatalf("allowed actions for leader failed: %v", err)
	}
	if len(leaderActions) != 0 {
		t.Fatalf("expected no actions for leader at start, got %d", len(leaderActions))
	}
}

func TestCommitActionPermissionDenied(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)
	outsider := testutil.SeedTestUser(t, db, "Outsider", "outsider@test.com")

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "restricted",
	}, g.Staff.ID)

	// leader 不在 staff 组里，提交 raise 被拒
	_, err := svc.Request.CommitAction(ctx, req.ID, g.Leader.ID, g.RaiseAction.ID)
	if !apperr.IsDontHaveRight(err) {
		t.Fatalf("expected permission denial for leader, got %v", err)
	}

	// 不在任何组里的用户同样被拒
	_, err = svc.Request.CommitAction(ctx, req.ID, outsider.ID, g.RaiseAction.ID)
	if !apperr.IsDontHaveRight(err) {
		t.Fatalf("expected permission denial for outsider, got %v", err)
	}

	// 被拒的提交不留任何痕迹
	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	if found.CurrentStateID != g.Start.ID || len(found.Actions) != 0 {
		t.Fatal("denied commit must not mutate the request")
	}
}

func TestCommitStayRoute(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "draft",
	}, g.Staff.ID)

	updated, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.EditAction.ID)
	if err != nil {
		t.Fatalf("commit edit failed: %v", err)
	}

	// 原地路由：状态不变，日志记下走过的路由
	if updated.CurrentStateID != g.Start.ID {
		t.Fatalf("edit must not advance state, got %s", updated.CurrentStateID)
	}
	if len(updated.Actions) != 1 {
		t.Fatalf("expected 1 audit row, got %d", len(updated.Actions))
	}
	row := updated.Actions[0]
	if row.RouteID != g.EditRoute.ID || row.Status != entity.RequestActionStatusActive {
		t.Fatalf("audit row mismatch: %+v", row)
	}
	if row.Route != nil && !row.Route.IsSelfLoop() {
		t.Fatal("edit route should be a self loop")
	}
	// 每次提交都推版本号
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
}

func TestEndToEndApprovalScenario(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, err := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID:      g.Process.ID,
		Title:          "annual leave",
		Content:        map[string]interface{}{"days": 5},
		Note:           "opening note",
		StakeholderIDs: []string{g.Leader.ID},
	}, g.Staff.ID)
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}

	// staff 先原地编辑
	r, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.EditAction.ID)
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if r.CurrentStateID != g.Start.ID {
		t.Fatal("edit must stay at start")
	}

	// staff 提交送审
	r, err = svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	if r.CurrentStateID != g.Review.ID {
		t.Fatalf("expected review state, got %s", r.CurrentStateID)
	}

	// leader 审批通过
	r, err = svc.Request.CommitAction(ctx, req.ID, g.Leader.ID, g.ApproveAction.ID)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if r.CurrentStateID != g.Done.ID {
		t.Fatalf("expected done state, got %s", r.CurrentStateID)
	}
	if r.Status != entity.RequestStatusDone {
		t.Fatalf("expected request status done, got %s", r.Status)
	}

	// 日志压缩：只有最后一条是 active
	log, err := svc.Request.ListRequestActions(ctx, req.ID)
	if err != nil {
		t.Fatalf("list request actions failed: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("expected 3 audit rows, got %d", len(log))
	}
	for _, row := range log[:2] {
		if row.Status != entity.RequestActionStatusDone {
			t.Fatalf("expected compacted row to be done: %+v", row)
		}
	}
	last := log[2]
	if last.Status != entity.RequestActionStatusActive || last.ActionID != g.ApproveAction.ID {
		t.Fatalf("expected last row active approve, got %+v", last)
	}

	// 终态没有出边，谁来都提交不动
	for _, user := range []string{g.Staff.ID, g.Leader.ID} {
		for _, action := range []string{g.RaiseAction.ID, g.ApproveAction.ID, g.DenyAction.ID} {
			if _, err := svc.Request.CommitAction(ctx, req.ID, user, action); !apperr.IsDontHaveRight(err) {
				t.Fatalf("expected dead end at done state, got %v", err)
			}
		}
	}
}

func TestRejectSendsBackToStart(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "incomplete request",
	}, g.Staff.ID)

	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	r, err := svc.Request.CommitAction(ctx, req.ID, g.Leader.ID, g.RejectAction.ID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if r.CurrentStateID != g.Start.ID {
		t.Fatalf("reject should send request back to start, got %s", r.CurrentStateID)
	}
	// 打回后 staff 可以改完重新提交
	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID); err != nil {
		t.Fatalf("re-raise after reject failed: %v", err)
	}
}

func TestIdempotenceByInvalidation(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "double submit",
	}, g.Staff.ID)

	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	// 状态推进后同一动作在新状态没有路由，重复提交失败而不是再次生效
	_, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if !apperr.IsDontHaveRight(err) {
		t.Fatalf("expected resubmission to fail, got %v", err)
	}

	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	if found.CurrentStateID != g.Review.ID || len(found.Actions) != 1 {
		t.Fatal("failed resubmission must not apply twice")
	}
}

func TestAddNoteActivityOnRoute(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)
	testutil.AttachActivityToRoute(t, db, g.RaiseRoute, entity.ActivityTypeAddNote, "note on raise")

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "noted request",
	}, g.Staff.ID)

	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID); err != nil {
		t.Fatalf("raise failed: %v", err)
	}

	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	var systemNotes []entity.RequestNote
	for _, n := range found.Notes {
		if n.NoteType == entity.NoteTypeSystem {
			systemNotes = append(systemNotes, n)
		}
	}
	// 恰好一条系统备注，内容是动作名
	if len(systemNotes) != 1 {
		t.Fatalf("expected exactly 1 system note, got %d", len(systemNotes))
	}
	if systemNotes[0].Note != g.RaiseAction.Name {
		t.Fatalf("expected note %q, got %q", g.RaiseAction.Name, systemNotes[0].Note)
	}
}

func TestStateEntryActivityFires(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)
	testutil.AttachActivityToState(t, db, g.Review, entity.ActivityTypeAddNote, "entry note")

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "entry activities",
	}, g.Staff.ID)

	// 原地编辑不进入新状态，进入活动不触发
	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.EditAction.ID); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	for _, n := range found.Notes {
		if n.NoteType == entity.NoteTypeSystem {
			t.Fatal("entry activity must not fire on a stay route")
		}
	}

	// 推进到 review 时触发
	if _, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID); err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	found, _ = svc.Request.FindOneRequest(ctx, req.ID)
	var count int
	for _, n := range found.Notes {
		if n.NoteType == entity.NoteTypeSystem {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected 1 system note from entry activity, got %d", count)
	}
}

func TestUnimplementedActivityAbortsTransition(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)
	testutil.AttachActivityToRoute(t, db, g.RaiseRoute, entity.ActivityTypeAddStakeholder, "auto cc")

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "doomed request",
	}, g.Staff.ID)

	_, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if err == nil {
		t.Fatal("expected unimplemented activity to fail the transition")
	}
	if apperr.CodeOf(err) != apperr.CodeNotImplement {
		t.Fatalf("expected not-implemented code, got %d", apperr.CodeOf(err))
	}

	// 活动失败必须整体回滚：状态、版本、日志都不动
	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	if found.CurrentStateID != g.Start.ID {
		t.Fatal("failed transition must not advance state")
	}
	if found.Version != 1 {
		t.Fatalf("failed transition must not bump version, got %d", found.Version)
	}
	if len(found.Actions) != 0 {
		t.Fatal("failed transition must not leave audit rows")
	}
}

func TestCommitActionConcurrentConflict(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "contended request",
	}, g.Staff.ID)

	// 在审计日志落库前从另一个连接抢先推版本号，模拟并发提交
	var bumped bool
	err := db.Callback().Create().Before("gorm:create").Register("test_concurrent_committer", func(tx *gorm.DB) {
		if bumped {
			return
		}
		if _, ok := tx.Statement.Dest.(*entity.RequestAction); !ok {
			return
		}
		bumped = true
		if err := db.Exec("UPDATE requests SET version = version + 1 WHERE id = ?", req.ID).Error; err != nil {
			t.Errorf("concurrent version bump failed: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback failed: %v", err)
	}

	_, err = svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict for stale commit, got %v", err)
	}

	// 输掉的提交整体回滚：状态不动、日志为空
	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	if found.CurrentStateID != g.Start.ID {
		t.Fatal("conflicted commit must not advance state")
	}
	if len(found.Actions) != 0 {
		t.Fatal("conflicted commit must not leave audit rows")
	}

	// 用刷新后的版本号重试可以成功
	r, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if err != nil {
		t.Fatalf("retry after conflict failed: %v", err)
	}
	if r.CurrentStateID != g.Review.ID {
		t.Fatalf("expected review state after retry, got %s", r.CurrentStateID)
	}
}

func TestAmbiguousActionTakesEarliestRoute(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	// 起点上再挂一条携带同一动作、指向 denied 的路由
	shadow := &entity.Route{
		ID:             uuid.New().String(),
		ProcessID:      g.Process.ID,
		CurrentStateID: g.Start.ID,
		NextStateID:    g.Denied.ID,
	}
	if err := db.Create(shadow).Error; err != nil {
		t.Fatalf("create shadow route failed: %v", err)
	}
	if err := db.Model(shadow).Association("Actions").Append(g.RaiseAction); err != nil {
		t.Fatalf("attach action to shadow route failed: %v", err)
	}

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "ambiguous raise",
	}, g.Staff.ID)

	r, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if err != nil {
		t.Fatalf("raise failed: %v", err)
	}
	// 创建最早的路由胜出，请求进入 review 而不是 denied
	if r.CurrentStateID != g.Review.ID {
		t.Fatalf("expected earliest route to win, got state %s", r.CurrentStateID)
	}
	if len(r.Actions) != 1 || r.Actions[0].RouteID != g.RaiseRoute.ID {
		t.Fatalf("audit row should reference the earliest route: %+v", r.Actions)
	}
}

func TestArchivedRequestRefusesCommit(t *testing.T) {
	db, svc := setupServices(t)
	ctx := context.Background()
	g := testutil.SeedWorkflowGraph(t, db)

	req, _ := svc.Request.CreateRequest(ctx, CreateRequestReq{
		ProcessID: g.Process.ID,
		Title:     "stale request",
	}, g.Staff.ID)

	if err := svc.Request.ArchiveRequest(ctx, req.ID); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	found, _ := svc.Request.FindOneRequest(ctx, req.ID)
	if found.Status != entity.RequestStatusArchived {
		t.Fatalf("expected archived status, got %s", found.Status)
	}

	_, err := svc.Request.CommitAction(ctx, req.ID, g.Staff.ID, g.RaiseAction.ID)
	if err == nil {
		t.Fatal("expected archived request to refuse commits")
	}
	if apperr.CodeOf(err) != apperr.CodeBadRequest {
		t.Fatalf("expected validation code, got %d", apperr.CodeOf(err))
	}
}
