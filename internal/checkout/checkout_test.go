package checkout

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"

	"staff_store/internal/db/dbtest"
	"staff_store/internal/domain"
	"staff_store/internal/ledger"
)

// failingCommit wraps the real ledger and fails every commit
type failingCommit struct {
	*ledger.Ledger
	released []string
}

func (f *failingCommit) Commit(context.Context, string) (*domain.Order, error) {
	return nil, errors.New("commit failed")
}

func (f *failingCommit) Release(ctx context.Context, token string) error {
	f.released = append(f.released, token)
	return f.Ledger.Release(ctx, token)
}

func TestCheckout_Success(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 25)
	mug := dbtest.Item(t, gdb, "Mug", 10, 3)
	m := NewManager(gdb, ledger.New(gdb), nil)

	order, err := m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: mug.ID, Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Total != 20 {
		t.Fatalf("expected total 20, got %d", order.Total)
	}
	if got := dbtest.Reload(t, gdb, user.ID).Balance; got != 5 {
		t.Fatalf("expected balance 5, got %d", got)
	}
	if got := dbtest.ReloadItem(t, gdb, mug.ID).Quantity; got != 1 {
		t.Fatalf("expected quantity 1, got %d", got)
	}
}

func TestCheckout_DefaultsAndMergesQuantities(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 100)
	hat := dbtest.Item(t, gdb, "Cap", 7, 5)
	m := NewManager(gdb, ledger.New(gdb), nil)

	order, err := m.Checkout(context.Background(), user.ID, []CartItem{
		{ItemID: hat.ID},
		{ItemID: hat.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].Quantity != 3 || order.Total != 21 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestCheckout_RejectsBadCarts(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 100)
	hat := dbtest.Item(t, gdb, "Cap", 7, 5)
	m := NewManager(gdb, ledger.New(gdb), nil)

	if _, err := m.Checkout(context.Background(), user.ID, nil); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	_, err := m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: hat.ID, Quantity: -1}})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	huge := []CartItem{
		{ItemID: hat.ID, Quantity: math.MaxInt64},
		{ItemID: hat.ID, Quantity: math.MaxInt64},
		{ItemID: hat.ID, Quantity: 3},
	}
	if _, err := m.Checkout(context.Background(), user.ID, huge); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for an overflowing cart, got %v", err)
	}
	if got := dbtest.ReloadItem(t, gdb, hat.ID).Quantity; got != 5 {
		t.Fatalf("expected stock untouched, got %d", got)
	}
}

func TestCheckout_SoldOutAndEmptyStock(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 100)
	soldOut := dbtest.Item(t, gdb, "Sold", 1, 5)
	gdb.Model(soldOut).Update("sold_out", true)
	empty := dbtest.Item(t, gdb, "Empty", 1, 0)
	m := NewManager(gdb, ledger.New(gdb), nil)

	_, err := m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: soldOut.ID, Quantity: 1}})
	if !errors.Is(err, ledger.ErrItemUnavailable) {
		t.Fatalf("expected ErrItemUnavailable, got %v", err)
	}
	_, err = m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: empty.ID, Quantity: 1}})
	var inv *ledger.InsufficientInventoryError
	if !errors.As(err, &inv) || len(inv.Items) != 1 || inv.Items[0].Available != 0 {
		t.Fatalf("expected InsufficientInventoryError, got %v", err)
	}
	if got := dbtest.Reload(t, gdb, user.ID).Balance; got != 100 {
		t.Fatalf("balance must be untouched, got %d", got)
	}
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 100)
	item := dbtest.Item(t, gdb, "Jacket", 150, 1)
	m := NewManager(gdb, ledger.New(gdb), nil)

	_, err := m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: item.ID, Quantity: 1}})
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := dbtest.Reload(t, gdb, user.ID).Balance; got != 100 {
		t.Fatalf("expected balance 100, got %d", got)
	}
	if got := dbtest.ReloadItem(t, gdb, item.ID).Quantity; got != 1 {
		t.Fatalf("expected quantity 1, got %d", got)
	}
}

func TestCheckout_ReleasesWhenCommitFails(t *testing.T) {
	gdb := dbtest.Open(t)
	user := dbtest.User(t, gdb, "jo", 100)
	item := dbtest.Item(t, gdb, "Cap", 10, 2)
	l := &failingCommit{Ledger: ledger.New(gdb)}
	m := NewManager(gdb, l, nil)

	if _, err := m.Checkout(context.Background(), user.ID, []CartItem{{ItemID: item.ID, Quantity: 2}}); err == nil {
		t.Fatalf("expected an error")
	}
	if len(l.released) != 1 {
		t.Fatalf("expected one release, got %d", len(l.released))
	}
	if got := dbtest.Reload(t, gdb, user.ID).Balance; got != 100 {
		t.Fatalf("expected balance 100, got %d", got)
	}
	if got := dbtest.ReloadItem(t, gdb, item.ID).Quantity; got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}
	var orders int64
	gdb.Model(&domain.Order{}).Count(&orders)
	if orders != 0 {
		t.Fatalf("expected no orders, got %d", orders)
	}
}
