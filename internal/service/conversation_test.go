package service

import (
	"context"
	"testing"

	"github.com/capitalize-ai/chatrelay/internal/apperr"
	"github.com/capitalize-ai/chatrelay/internal/model"
	"github.com/capitalize-ai/chatrelay/internal/store/memory"
	"github.com/capitalize-ai/chatrelay/pkg/logger"
)

func newConversationFixture() (*memory.Backend, *ConversationService) {
	backend := memory.NewBackend()
	return backend, NewConversationService(backend, logger.NewNop())
}

func TestConversationGetEnforcesOwnership(t *testing.T) {
	backend, svc := newConversationFixture()
	ctx := context.Background()

	conv, _ := backend.Conversations().Create(ctx, "owner-1", "mine")

	got, err := svc.Get(ctx, model.Identity{UserID: "owner-1"}, conv.ID)
	if err != nil {
		t.Fatalf("owner denied access: %v", err)
	}
	if got.ID != conv.ID {
		t.Fatalf("wrong conversation: %s", got.ID)
	}

	_, err = svc.Get(ctx, model.Identity{UserID: "intruder"}, conv.ID)
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for foreign caller, got %v", err)
	}
}

func TestConversationGetUnknownID(t *testing.T) {
	_, svc := newConversationFixture()

	_, err := svc.Get(context.Background(), model.Identity{UserID: "owner-1"}, "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestConversationListPagesAndDefaults(t *testing.T) {
	backend, svc := newConversationFixture()
	ctx := context.Background()
	id := model.Identity{UserID: "owner-1"}

	for i := 0; i < 3; i++ {
		backend.Conversations().Create(ctx, id.UserID, "t")
	}
	backend.Conversations().Create(ctx, "someone-else", "t")

	resp, err := svc.List(ctx, id, 0, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if resp.Page != 1 || resp.Limit != 20 {
		t.Fatalf("defaults not applied: page=%d limit=%d", resp.Page, resp.Limit)
	}
	if resp.Total != 3 || len(resp.Conversations) != 3 {
		t.Fatalf("total=%d len=%d", resp.Total, len(resp.Conversations))
	}

	resp, _ = svc.List(ctx, id, 2, 2)
	if len(resp.Conversations) != 1 || resp.Total != 3 {
		t.Fatalf("second page wrong: len=%d total=%d", len(resp.Conversations), resp.Total)
	}
}

func TestConversationListEmptyIsNotNil(t *testing.T) {
	_, svc := newConversationFixture()

	resp, err := svc.List(context.Background(), model.Identity{UserID: "nobody"}, 1, 20)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if resp.Conversations == nil {
		t.Fatal("empty listing must serialize as [], not null")
	}
}

func TestConversationRenameRequiresOwnership(t *testing.T) {
	backend, svc := newConversationFixture()
	ctx := context.Background()

	conv, _ := backend.Conversations().Create(ctx, "owner-1", "old")

	if _, err := svc.Rename(ctx, model.Identity{UserID: "intruder"}, conv.ID, "hijacked"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	renamed, err := svc.Rename(ctx, model.Identity{UserID: "owner-1"}, conv.ID, "new")
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if renamed.Title != "new" {
		t.Fatalf("title = %q", renamed.Title)
	}
}

func TestConversationDeleteRequiresOwnership(t *testing.T) {
	backend, svc := newConversationFixture()
	ctx := context.Background()

	conv, _ := backend.Conversations().Create(ctx, "owner-1", "t")

	if err := svc.Delete(ctx, model.Identity{UserID: "intruder"}, conv.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if err := svc.Delete(ctx, model.Identity{UserID: "owner-1"}, conv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, model.Identity{UserID: "owner-1"}, conv.ID); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}
