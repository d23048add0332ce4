package cart

import (
	"errors"
	"testing"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func product(price string) domain.Product {
	return domain.Product{
		ID:       uuid.New(),
		Name:     "Produto " + price,
		Price:    decimal.RequireFromString(price),
		Category: domain.CategorySofas,
	}
}

func TestAddSameProductTwiceIncrements(t *testing.T) {
	store := NewStore(nil)
	p := product("10.00")

	if err := store.Add(p, 1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(p, 1); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(items))
	}
	if items[0].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", items[0].Quantity)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	store := NewStore(nil)
	err := store.Add(product("10.00"), 0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !store.IsEmpty() {
		t.Error("expected cart to stay empty")
	}
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	store := NewStore(nil)
	a, b := product("100"), product("50")
	_ = store.Add(a, 2)
	_ = store.Add(b, 1)

	if err := store.SetQuantity(a.ID, 0); err != nil {
		t.Fatalf("SetQuantity failed: %v", err)
	}

	if store.Quantity(a.ID) != 0 {
		t.Error("expected product to be removed")
	}
	if store.TotalItems() != 1 {
		t.Errorf("expected 1 item, got %d", store.TotalItems())
	}
}

func TestSetQuantityNegativeDoesNotMutate(t *testing.T) {
	store := NewStore(nil)
	p := product("20")
	_ = store.Add(p, 3)

	err := store.SetQuantity(p.ID, -1)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.Quantity(p.ID) != 3 {
		t.Errorf("expected quantity to remain 3, got %d", store.Quantity(p.ID))
	}
}

func TestSetQuantityUnknownProduct(t *testing.T) {
	store := NewStore(nil)
	if err := store.SetQuantity(uuid.New(), 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTotalPriceExample(t *testing.T) {
	store := NewStore(nil)
	_ = store.Add(product("100"), 2)
	_ = store.Add(product("50"), 1)

	want := decimal.RequireFromString("250.00")
	if got := store.TotalPrice(); !got.Equal(want) {
		t.Errorf("expected total %s, got %s", want, got)
	}
	if got := domain.FormatPrice(store.TotalPrice()); got != "R$ 250.00" {
		t.Errorf("unexpected formatted total %q", got)
	}
}

func TestTotalPriceIsExact(t *testing.T) {
	store := NewStore(nil)
	_ = store.Add(product("0.10"), 3)
	_ = store.Add(product("0.20"), 1)

	if got := store.TotalPrice(); !got.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("expected exact 0.50, got %s", got)
	}
}

func TestOrderItemsFreezePrices(t *testing.T) {
	store := NewStore(nil)
	a := product("12.34")
	_ = store.Add(a, 3)
	orderID := uuid.New()

	items, total := store.OrderItems(orderID)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].OrderID != orderID || items[0].ProductID != a.ID || items[0].Quantity != 3 {
		t.Errorf("unexpected order item %+v", items[0])
	}
	if !total.Equal(decimal.RequireFromString("37.02")) {
		t.Errorf("expected total 37.02, got %s", total)
	}
	if err := domain.ValidateItems(items, total); err != nil {
		t.Errorf("frozen items should validate: %v", err)
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	store := NewStore(nil)
	var last Snapshot
	calls := 0
	unsubscribe := store.Subscribe(func(s Snapshot) {
		calls++
		last = s
	})

	p := product("5")
	_ = store.Add(p, 2)
	if calls != 1 || last.TotalItems != 2 {
		t.Fatalf("expected one notification with 2 items, got %d calls, %+v", calls, last)
	}

	store.Clear()
	if calls != 2 || last.TotalItems != 0 {
		t.Fatalf("expected clear notification, got %d calls, %+v", calls, last)
	}

	store.Clear()
	if calls != 2 {
		t.Errorf("clearing an empty cart should not notify")
	}

	unsubscribe()
	_ = store.Add(p, 1)
	if calls != 2 {
		t.Errorf("unsubscribed observer was notified")
	}
}

// Feature: storefront, Property 1: Cart totals track every mutation
// Validates: Requirements 4.3, 8
func TestProperty_CartTotalsMatchLineItems(t *testing.T) {
	catalog := []domain.Product{product("100"), product("50"), product("19.99"), product("0.01")}

	properties := gopter.NewProperties(nil)

	properties.Property("totals equal the sums over current lines after any operation sequence", prop.ForAll(
		func(ops []int) bool {
			store := NewStore(nil)
			model := make(map[uuid.UUID]int)

			for _, op := range ops {
				p := catalog[(op/3)%len(catalog)]
				qty := (op / 12) % 5
				switch op % 3 {
				case 0:
					if qty == 0 {
						continue
					}
					if err := store.Add(p, qty); err != nil {
						t.Logf("FAIL: Add returned %v", err)
						return false
					}
					model[p.ID] += qty
				case 1:
					store.Remove(p.ID)
					delete(model, p.ID)
				case 2:
					err := store.SetQuantity(p.ID, qty)
					_, present := model[p.ID]
					switch {
					case qty == 0:
						delete(model, p.ID)
					case present:
						model[p.ID] = qty
					case !errors.Is(err, domain.ErrNotFound):
						t.Logf("FAIL: expected not found for absent product, got %v", err)
						return false
					}
				}
			}

			wantItems := 0
			wantPrice := decimal.Zero
			for _, p := range catalog {
				qty := model[p.ID]
				wantItems += qty
				wantPrice = wantPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
				if store.Quantity(p.ID) != qty {
					t.Logf("FAIL: quantity mismatch for %s: expected %d, got %d", p.Name, qty, store.Quantity(p.ID))
					return false
				}
			}

			if len(store.Items()) != len(model) {
				t.Logf("FAIL: expected %d lines, got %d", len(model), len(store.Items()))
				return false
			}
			if store.TotalItems() != wantItems {
				t.Logf("FAIL: TotalItems expected %d, got %d", wantItems, store.TotalItems())
				return false
			}
			if !store.TotalPrice().Equal(wantPrice) {
				t.Logf("FAIL: TotalPrice expected %s, got %s", wantPrice, store.TotalPrice())
				return false
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 239)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
