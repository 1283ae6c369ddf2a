package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCartValidate(t *testing.T) {
	valid := CartSnapshot{
		SnapshotID: "snap-1",
		UserID:     "user-1",
		Lines: []CartLine{
			{ProductID: "prod-a", Qty: 2, UnitPrice: price("10.00")},
		},
	}
	require.NoError(t, valid.Validate())

	empty := CartSnapshot{SnapshotID: "snap-1", UserID: "user-1"}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyCart)

	noUser := valid
	noUser.UserID = ""
	assert.ErrorIs(t, noUser.Validate(), ErrInvalidCart)

	badQty := CartSnapshot{
		SnapshotID: "snap-1",
		UserID:     "user-1",
		Lines:      []CartLine{{ProductID: "prod-a", Qty: 0, UnitPrice: price("10.00")}},
	}
	assert.ErrorIs(t, badQty.Validate(), ErrInvalidCart)

	negPrice := CartSnapshot{
		SnapshotID: "snap-1",
		UserID:     "user-1",
		Lines:      []CartLine{{ProductID: "prod-a", Qty: 1, UnitPrice: price("-1.00")}},
	}
	assert.ErrorIs(t, negPrice.Validate(), ErrInvalidCart)
}

func TestCartTotal(t *testing.T) {
	cart := CartSnapshot{
		SnapshotID: "snap-1",
		UserID:     "user-1",
		Lines: []CartLine{
			{ProductID: "prod-a", Qty: 2, UnitPrice: price("10.00")},
			{ProductID: "prod-b", Qty: 1, UnitPrice: price("5.00")},
		},
	}
	assert.True(t, cart.Total().Equal(price("25.00")), "got %s", cart.Total())
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(2500), Cents(price("25.00")))
	assert.Equal(t, int64(1999), Cents(price("19.99")))
	assert.Equal(t, int64(0), Cents(decimal.Zero))
}
