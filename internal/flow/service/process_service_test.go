package service

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-flow/internal/flow/apperr"
	"github.com/bitfantasy/nimo-flow/internal/flow/entity"
	"github.com/bitfantasy/nimo-flow/internal/flow/repository"
	"github.com/bitfantasy/nimo-flow/internal/flow/testutil"
	"gorm.io/gorm"
)

func setupServices(t *testing.T) (*gorm.DB, *Services) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewServices(db, repos, nil, nil)
}

func TestCreateProcessDuplicateName(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	if _, err := svc.Process.CreateProcess(ctx, "expense approval", "", "active"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	_, err := svc.Process.CreateProcess(ctx, "expense approval", "", "active")
	if err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict code, got %d", apperr.CodeOf(err))
	}
}

func TestCreateProcessReusesDeletedName(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, err := svc.Process.CreateProcess(ctx, "contract approval", "", "active")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Process.DeleteProcess(ctx, p.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// 软删除后名字可以复用，唯一索引只约束未删除的行
	revived, err := svc.Process.CreateProcess(ctx, "contract approval", "", "active")
	if err != nil {
		t.Fatalf("recreate after delete failed: %v", err)
	}
	if revived.ID == p.ID {
		t.Fatal("recreated process must be a new row")
	}
}

func TestProcessUpdateKeepsOwnName(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, err := svc.Process.CreateProcess(ctx, "purchase approval", "", "active")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// 保存同名不算重名
	if _, err := svc.Process.UpdateProcess(ctx, p.ID, "purchase approval", "updated", "active"); err != nil {
		t.Fatalf("update with own name failed: %v", err)
	}
}

func TestAddStateDuplicateNamePerProcess(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "flow a", "", "active")
	other, _ := svc.Process.CreateProcess(ctx, "flow b", "", "active")

	if _, err := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal"); err != nil {
		t.Fatalf("add state failed: %v", err)
	}
	_, err := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal")
	if err == nil {
		t.Fatal("expected duplicate state name within process to be rejected")
	}
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("expected conflict code, got %d", apperr.CodeOf(err))
	}

	// 不同流程下可以重名
	if _, err := svc.Process.AddStateToProcess(ctx, other.ID, "review", "", "normal"); err != nil {
		t.Fatalf("same name in another process should pass: %v", err)
	}
}

func TestSingleStartStateInvariant(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "onboarding", "", "active")
	start, err := svc.Process.AddStateToProcess(ctx, p.ID, "start point", "", "start")
	if err != nil {
		t.Fatalf("add start state failed: %v", err)
	}

	// 第二个起点状态被拒绝
	_, err = svc.Process.AddStateToProcess(ctx, p.ID, "another start", "", "start")
	if err == nil {
		t.Fatal("expected second start state to be rejected")
	}
	if apperr.CodeOf(err) != apperr.CodeBadRequest {
		t.Fatalf("expected validation code, got %d", apperr.CodeOf(err))
	}

	// 普通状态改成起点同样被拒绝
	normal, _ := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal")
	if _, err := svc.Process.UpdateStateOnProcess(ctx, p.ID, normal.ID, "review", "", "start"); err == nil {
		t.Fatal("expected re-typing to start to be rejected")
	}

	// 起点状态自己重新保存没问题
	if _, err := svc.Process.UpdateStateOnProcess(ctx, p.ID, start.ID, "start point", "renamed", "start"); err != nil {
		t.Fatalf("re-saving the start state failed: %v", err)
	}

	found, err := svc.Process.FindStartState(ctx, p.ID)
	if err != nil {
		t.Fatalf("find start state failed: %v", err)
	}
	if found.ID != start.ID {
		t.Fatalf("expected start state %s, got %s", start.ID, found.ID)
	}
}

func TestFindStartStateMissing(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "empty flow", "", "active")
	_, err := svc.Process.FindStartState(ctx, p.ID)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDuplicateRouteRejected(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "routing", "", "active")
	start, _ := svc.Process.AddStateToProcess(ctx, p.ID, "start point", "", "start")
	review, _ := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal")
	done, _ := svc.Process.AddStateToProcess(ctx, p.ID, "done", "", "complete")

	if _, err := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, review.ID); err != nil {
		t.Fatalf("add route failed: %v", err)
	}

	// 同一 (当前状态, 下一状态) 的第二条路由被拒绝
	_, err := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, review.ID)
	if err == nil {
		t.Fatal("expected duplicate route to be rejected")
	}
	if apperr.CodeOf(err) != apperr.CodeConflict {
		t.Fatalf("expected conflict code, got %d", apperr.CodeOf(err))
	}

	// 图保持不变
	process, err := svc.Process.FindOneProcess(ctx, p.ID)
	if err != nil {
		t.Fatalf("find process failed: %v", err)
	}
	if len(process.Routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(process.Routes))
	}

	// 更新撞上已有三元组同样被拒绝
	second, err := svc.Process.AddRouteToProcess(ctx, p.ID, review.ID, done.ID)
	if err != nil {
		t.Fatalf("add second route failed: %v", err)
	}
	if _, err := svc.Process.UpdateRouteOnProcess(ctx, p.ID, second.ID, start.ID, review.ID); err == nil {
		t.Fatal("expected update onto an existing pair to be rejected")
	}

	// 更新回自己的三元组没问题
	if _, err := svc.Process.UpdateRouteOnProcess(ctx, p.ID, second.ID, review.ID, done.ID); err != nil {
		t.Fatalf("re-saving a route failed: %v", err)
	}
}

func TestStayRouteCoexistsWithAdvanceRoute(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "self loops", "", "active")
	start, _ := svc.Process.AddStateToProcess(ctx, p.ID, "start point", "", "start")
	review, _ := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal")

	// 原地路由（next 为空）和推进路由不冲突
	stay, err := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, "")
	if err != nil {
		t.Fatalf("add stay route failed: %v", err)
	}
	if !stay.IsSelfLoop() {
		t.Fatal("expected stay route to be a self loop")
	}
	if _, err := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, review.ID); err != nil {
		t.Fatalf("add advance route failed: %v", err)
	}

	// 原地路由本身也查重
	if _, err := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, ""); err == nil {
		t.Fatal("expected duplicate stay route to be rejected")
	}
}

func TestAttachActionAndActivity(t *testing.T) {
	_, svc := setupServices(t)
	ctx := context.Background()

	p, _ := svc.Process.CreateProcess(ctx, "attachments", "", "active")
	start, _ := svc.Process.AddStateToProcess(ctx, p.ID, "start point", "", "start")
	review, _ := svc.Process.AddStateToProcess(ctx, p.ID, "review", "", "normal")
	route, _ := svc.Process.AddRouteToProcess(ctx, p.ID, start.ID, review.ID)

	action, err := svc.Action.CreateAction(ctx, "raise request", "", "start")
	if err != nil {
		t.Fatalf("create action failed: %v", err)
	}
	activity, err := svc.Activity.CreateActivity(ctx, "note on raise", "", entity.ActivityTypeAddNote)
	if err != nil {
		t.Fatalf("create activity failed: %v", err)
	}

	if err := svc.Process.AddActionToRoute(ctx, p.ID, route.ID, action.ID); err != nil {
		t.Fatalf("attach action failed: %v", err)
	}
	if err := svc.Process.AddActivityToRoute(ctx, p.ID, route.ID, activity.ID); err != nil {
		t.Fatalf("attach activity to route failed: %v", err)
	}
	if err := svc.Process.AddActivityToState(ctx, p.ID, review.ID, activity.ID); err != nil {
		t.Fatalf("attach activity to state failed: %v", err)
	}

	process, _ := svc.Process.FindOneProcess(ctx, p.ID)
	var got *entity.Route
	for i := range process.Routes {
		if process.Routes[i].ID == route.ID {
			got = &process.Routes[i]
		}
	}
	if got == nil || !got.HasAction(action.ID) {
		t.Fatal("expected route to carry the attached action")
	}
	if len(got.Activities) != 1 {
		t.Fatalf("expected 1 route activity, got %d", len(got.Activities))
	}

	if err := svc.Process.RemoveActionFromRoute(ctx, p.ID, route.ID, action.ID); err != nil {
		t.Fatalf("detach action failed: %v", err)
	}
	process, _ = svc.Process.FindOneProcess(ctx, p.ID)
	for i := range process.Routes {
		if process.Routes[i].ID == route.ID && process.Routes[i].HasAction(action.ID) {
			t.Fatal("expected action to be detached")
		}
	}
}
