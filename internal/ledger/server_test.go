package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"staff_store/internal/db"
	"staff_store/internal/db/dbtest"
	"staff_store/internal/domain"
)

var serverDrivers = []string{db.DriverMySQL, db.DriverPostgres}

// buyConcurrently runs one reserve+commit per buyer at the same time
func buyConcurrently(l *Ledger, buyers []uint, lines []Line) []error {
	errs := make([]error, len(buyers))
	var wg sync.WaitGroup
	for i, id := range buyers {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			res, err := l.Reserve(context.Background(), id, lines)
			if err == nil {
				_, err = l.Commit(context.Background(), res.Token)
			}
			errs[i] = err
		}(i, id)
	}
	wg.Wait()
	return errs
}

func TestServer_ConcurrentBuyersNeverOversell(t *testing.T) {
	for _, driver := range serverDrivers {
		t.Run(driver, func(t *testing.T) {
			gdb := dbtest.OpenServer(t, driver)
			item := dbtest.Item(t, gdb, "Limited", 10, 3)
			var buyers []uint
			for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
				buyers = append(buyers, dbtest.User(t, gdb, name, 100).ID)
			}

			var ok int
			for _, err := range buyConcurrently(New(gdb), buyers, []Line{{ItemID: item.ID, Quantity: 1}}) {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrInsufficientInventory):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if ok != 3 {
				t.Fatalf("expected 3 purchases, got %d", ok)
			}
			if got := dbtest.ReloadItem(t, gdb, item.ID).Quantity; got != 0 {
				t.Fatalf("expected quantity 0, got %d", got)
			}
			var orders int64
			gdb.Model(&domain.Order{}).Count(&orders)
			if orders != 3 {
				t.Fatalf("expected 3 orders, got %d", orders)
			}
		})
	}
}

func TestServer_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	for _, driver := range serverDrivers {
		t.Run(driver, func(t *testing.T) {
			gdb := dbtest.OpenServer(t, driver)
			item := dbtest.Item(t, gdb, "Coffee", 10, 100)
			user := dbtest.User(t, gdb, "jo", 50)
			buyers := make([]uint, 8)
			for i := range buyers {
				buyers[i] = user.ID
			}

			var ok int
			for _, err := range buyConcurrently(New(gdb), buyers, []Line{{ItemID: item.ID, Quantity: 1}}) {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrInsufficientBalance):
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if ok != 5 {
				t.Fatalf("expected 5 purchases, got %d", ok)
			}
			if got := dbtest.Reload(t, gdb, user.ID).Balance; got != 0 {
				t.Fatalf("expected balance 0, got %d", got)
			}
			if got := dbtest.ReloadItem(t, gdb, item.ID).Quantity; got != 95 {
				t.Fatalf("expected quantity 95, got %d", got)
			}
		})
	}
}

func TestServer_FreeItem(t *testing.T) {
	for _, driver := range serverDrivers {
		t.Run(driver, func(t *testing.T) {
			gdb := dbtest.OpenServer(t, driver)
			item := dbtest.Item(t, gdb, "Sticker", 0, 1)
			user := dbtest.User(t, gdb, "jo", 0)

			if errs := buyConcurrently(New(gdb), []uint{user.ID}, []Line{{ItemID: item.ID, Quantity: 1}}); errs[0] != nil {
				t.Fatalf("unexpected error: %v", errs[0])
			}
			if got := dbtest.ReloadItem(t, gdb, item.ID).Quantity; got != 0 {
				t.Fatalf("expected quantity 0, got %d", got)
			}
		})
	}
}
