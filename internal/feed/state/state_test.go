package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"catchup-feed/internal/domain/entity"
	"catchup-feed/internal/feed/state"
)

func openTestStore(t *testing.T) *state.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := state.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_UpsertClusterArm_CreatesWithUniformPrior(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertClusterArm(ctx, 3, 7); err != nil {
		t.Fatalf("UpsertClusterArm: %v", err)
	}

	arm, err := s.GetClusterArm(ctx, 3)
	if err != nil {
		t.Fatalf("GetClusterArm: %v", err)
	}
	if arm == nil {
		t.Fatal("expected arm, got nil")
	}

	want := entity.ClusterArm{ClusterID: 3, Alpha: 1.0, Beta: 1.0, ArticleCount: 7, Label: ""}
	if diff := cmp.Diff(want, *arm, cmpopts.IgnoreFields(entity.ClusterArm{}, "UpdatedAt")); diff != "" {
		t.Fatalf("arm mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_UpsertClusterArm_RefreshesCountNotLabel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertClusterArm(ctx, 1, 2); err != nil {
		t.Fatalf("initial upsert: %v", err)
	}
	if err := s.UpsertClusterArm(ctx, 1, 9); err != nil {
		t.Fatalf("refresh upsert: %v", err)
	}

	arm, err := s.GetClusterArm(ctx, 1)
	if err != nil {
		t.Fatalf("GetClusterArm: %v", err)
	}
	if arm.ArticleCount != 9 {
		t.Errorf("ArticleCount = %d, want 9", arm.ArticleCount)
	}
	if arm.Label != "" {
		t.Errorf("Label = %q, want empty (no label supplied to overwrite with)", arm.Label)
	}
}

func TestStore_GetClusterArm_MissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	arm, err := s.GetClusterArm(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetClusterArm: %v", err)
	}
	if arm != nil {
		t.Fatalf("expected nil for missing arm, got %+v", arm)
	}
}

func TestStore_UpdateArmReward(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertClusterArm(ctx, 5, 1); err != nil {
		t.Fatalf("UpsertClusterArm: %v", err)
	}

	if err := s.UpdateArmReward(ctx, 5, true); err != nil {
		t.Fatalf("UpdateArmReward success: %v", err)
	}
	arm, _ := s.GetClusterArm(ctx, 5)
	if arm.Alpha != 2.0 || arm.Beta != 1.0 {
		t.Errorf("after success: alpha=%v beta=%v, want 2.0/1.0", arm.Alpha, arm.Beta)
	}

	if err := s.UpdateArmReward(ctx, 5, false); err != nil {
		t.Fatalf("UpdateArmReward failure: %v", err)
	}
	arm, _ = s.GetClusterArm(ctx, 5)
	if arm.Alpha != 2.0 || arm.Beta != 2.0 {
		t.Errorf("after failure: alpha=%v beta=%v, want 2.0/2.0", arm.Alpha, arm.Beta)
	}
}

func TestStore_GetAllClusterArms(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []int{1, 2, 3} {
		if err := s.UpsertClusterArm(ctx, id, id*10); err != nil {
			t.Fatalf("UpsertClusterArm(%d): %v", id, err)
		}
	}

	arms, err := s.GetAllClusterArms(ctx)
	if err != nil {
		t.Fatalf("GetAllClusterArms: %v", err)
	}
	if len(arms) != 3 {
		t.Fatalf("got %d arms, want 3", len(arms))
	}
}

func TestStore_LogAction_And_GetActionLogs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	clusterID := 4
	if err := s.LogAction(ctx, "article-a", entity.ActionClick, &clusterID); err != nil {
		t.Fatalf("LogAction click: %v", err)
	}
	if err := s.LogAction(ctx, "article-b", entity.ActionSkip, nil); err != nil {
		t.Fatalf("LogAction skip: %v", err)
	}

	entries, err := s.GetActionLogs(ctx, 10)
	if err != nil {
		t.Fatalf("GetActionLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Newest first: article-b was logged second.
	if entries[0].ArticleID != "article-b" {
		t.Errorf("entries[0].ArticleID = %q, want article-b", entries[0].ArticleID)
	}
	if entries[0].ClusterID != nil {
		t.Errorf("entries[0].ClusterID = %v, want nil", entries[0].ClusterID)
	}
	if entries[1].ArticleID != "article-a" || entries[1].Action != entity.ActionClick {
		t.Errorf("entries[1] = %+v, want article-a/click", entries[1])
	}
	if entries[1].ClusterID == nil || *entries[1].ClusterID != 4 {
		t.Errorf("entries[1].ClusterID = %v, want *4", entries[1].ClusterID)
	}
}

func TestStore_GetActionLogs_RespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.LogAction(ctx, "article", entity.ActionClick, nil); err != nil {
			t.Fatalf("LogAction %d: %v", i, err)
		}
	}

	entries, err := s.GetActionLogs(ctx, 2)
	if err != nil {
		t.Fatalf("GetActionLogs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestStore_CreatedAtIsRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.LogAction(ctx, "article-c", entity.ActionBookmark, nil); err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	entries, err := s.GetActionLogs(ctx, 1)
	if err != nil {
		t.Fatalf("GetActionLogs: %v", err)
	}
	if since := time.Since(entries[0].CreatedAt); since < 0 || since > time.Minute {
		t.Errorf("CreatedAt = %v, not within the last minute", entries[0].CreatedAt)
	}
}
