package service

import (
	"context"
	"errors"
	"testing"

	"github.com/albuquerque-rafael/NFT-Parts-Factory/internal/events"
)

// buildTree 构造两层树：root=[mid, d]，mid=[a, b]，全部归 alice
func buildTree(t *testing.T, svcs *Services) (rootID, midID uint64, leafIDs []uint64) {
	t.Helper()
	ctx := context.Background()

	a := mintPart(t, svcs.Part, "alice", 1, "motor")
	b := mintPart(t, svcs.Part, "alice", 2, "gearbox")
	d := mintPart(t, svcs.Part, "alice", 4, "axle")

	mid, err := svcs.Part.Assemble(ctx, "alice", &AssembleRequest{
		PartNumber: 3, Name: "drivetrain", Manufacturer: "Acme",
		PartIDs: []uint64{a.ID, b.ID},
	})
	if err != nil {
		t.Fatalf("Assemble mid failed: %v", err)
	}

	root, err := svcs.Part.Assemble(ctx, "alice", &AssembleRequest{
		PartNumber: 5, Name: "chassis", Manufacturer: "Acme",
		PartIDs: []uint64{mid.ID, d.ID},
	})
	if err != nil {
		t.Fatalf("Assemble root failed: %v", err)
	}

	return root.ID, mid.ID, []uint64{a.ID, b.ID, d.ID}
}

func TestTransferCascadesToWholeSubtree(t *testing.T) {
	svcs, pub := newTestServices(t)
	ctx := context.Background()

	rootID, midID, leafIDs := buildTree(t, svcs)
	pub.Reset()

	if err := svcs.Registry.Transfer(ctx, "alice", rootID, "bob"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	// 整棵子树的所有权一起移动
	all := append([]uint64{rootID, midID}, leafIDs...)
	for _, id := range all {
		owner, err := svcs.Registry.CurrentOwner(ctx, id)
		if err != nil {
			t.Fatalf("CurrentOwner(%d) failed: %v", id, err)
		}
		if owner != "bob" {
			t.Errorf("Part %d: expected owner bob, got %s", id, owner)
		}
	}

	evts := pub.Events()
	if len(evts) != len(all) {
		t.Errorf("Expected %d transfer events, got %d", len(all), len(evts))
	}
	for _, evt := range evts {
		if evt.Type != events.TypePartTransferred || evt.From != "alice" || evt.To != "bob" {
			t.Errorf("Unexpected transfer event: %+v", evt)
		}
	}
}

func TestTransferLockedPartRejected(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	_, midID, _ := buildTree(t, svcs)

	// mid 是 root 的子件，不能作为直接转移目标
	err := svcs.Registry.Transfer(ctx, "alice", midID, "bob")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState, got %v", err)
	}

	owner, _ := svcs.Registry.CurrentOwner(ctx, midID)
	if owner != "alice" {
		t.Errorf("Failed transfer mutated ownership: %s", owner)
	}
}

func TestTransferUnauthorized(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	part := mintPart(t, svcs.Part, "alice", 1, "motor")
	err := svcs.Registry.Transfer(ctx, "mallory", part.ID, "mallory")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestApprovedDelegateCanTransfer(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	part := mintPart(t, svcs.Part, "alice", 1, "motor")

	if err := svcs.Registry.Approve(ctx, "alice", part.ID, "carol"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	ok, err := svcs.Registry.IsAuthorized(ctx, "carol", part.ID)
	if err != nil || !ok {
		t.Fatalf("Expected carol authorized, got ok=%v err=%v", ok, err)
	}

	if err := svcs.Registry.Transfer(ctx, "carol", part.ID, "carol"); err != nil {
		t.Fatalf("Delegate transfer failed: %v", err)
	}
	owner, _ := svcs.Registry.CurrentOwner(ctx, part.ID)
	if owner != "carol" {
		t.Errorf("Expected owner carol, got %s", owner)
	}
}

func TestTransferClearsApproval(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	part := mintPart(t, svcs.Part, "alice", 1, "motor")
	if err := svcs.Registry.Approve(ctx, "alice", part.ID, "carol"); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	if err := svcs.Registry.Transfer(ctx, "alice", part.ID, "bob"); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	// 转移后零件级委托失效
	ok, err := svcs.Registry.IsAuthorized(ctx, "carol", part.ID)
	if err != nil {
		t.Fatalf("IsAuthorized failed: %v", err)
	}
	if ok {
		t.Error("Expected approval cleared after transfer")
	}
}

func TestApproveUnauthorized(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	part := mintPart(t, svcs.Part, "alice", 1, "motor")
	err := svcs.Registry.Approve(ctx, "mallory", part.ID, "mallory")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestOperatorCanAssembleOwnersParts(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	a := mintPart(t, svcs.Part, "alice", 1, "motor")
	b := mintPart(t, svcs.Part, "alice", 2, "gearbox")

	if err := svcs.Registry.SetOperatorApproval(ctx, "alice", "carol", true); err != nil {
		t.Fatalf("SetOperatorApproval failed: %v", err)
	}

	c, err := svcs.Part.Assemble(ctx, "carol", &AssembleRequest{
		PartNumber: 3, Name: "drivetrain", Manufacturer: "Acme",
		PartIDs: []uint64{a.ID, b.ID},
	})
	if err != nil {
		t.Fatalf("Operator assemble failed: %v", err)
	}

	// 组合件归 alice，不归操作员
	owner, _ := svcs.Registry.CurrentOwner(ctx, c.ID)
	if owner != "alice" {
		t.Errorf("Expected composite owned by alice, got %s", owner)
	}

	// 撤销授权后操作员失去资格
	if err := svcs.Registry.SetOperatorApproval(ctx, "alice", "carol", false); err != nil {
		t.Fatalf("Revoke operator failed: %v", err)
	}
	if err := svcs.Part.Disassemble(ctx, "carol", c.ID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized after revoke, got %v", err)
	}
}

func TestSetOperatorApprovalValidation(t *testing.T) {
	svcs, _ := newTestServices(t)
	ctx := context.Background()

	if err := svcs.Registry.SetOperatorApproval(ctx, "alice", "", true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Empty operator: expected ErrInvalidInput, got %v", err)
	}
	if err := svcs.Registry.SetOperatorApproval(ctx, "alice", "alice", true); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Self operator: expected ErrInvalidInput, got %v", err)
	}
}
