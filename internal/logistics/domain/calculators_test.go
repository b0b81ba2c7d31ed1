package logistics

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestComputeBill_Scenario(t *testing.T) {
	bill := &Bill{
		BillAmount:         d("10000"),
		Detention:          d("500"),
		Extra:              d("0"),
		RTO:                d("200"),
		Mamool:             d("100"),
		Penalties:          d("0"),
		TDS:                d("50"),
		PartyCommissionCut: d("0"),
	}
	ComputeBill(bill)
	require.True(t, bill.TotalFreight.Equal(d("10700")), "total freight %s", bill.TotalFreight)
	require.True(t, bill.NetAmount.Equal(d("10550")), "net amount %s", bill.NetAmount)
	require.True(t, bill.Balance.Equal(d("10550")))
}

func TestComputeBill_TotalFreightIgnoresDeductions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	amount := func() decimal.Decimal { return decimal.New(rng.Int63n(1_000_000), -2) }
	for i := 0; i < 200; i++ {
		bill := &Bill{
			BillAmount:         amount(),
			Detention:          amount(),
			Extra:              amount(),
			RTO:                amount(),
			Mamool:             amount(),
			Penalties:          amount(),
			TDS:                amount(),
			PartyCommissionCut: amount(),
		}
		ComputeBill(bill)
		total := bill.BillAmount.Add(bill.Detention).Add(bill.Extra).Add(bill.RTO)
		net := total.Sub(bill.Mamool).Sub(bill.Penalties).Sub(bill.TDS).Sub(bill.PartyCommissionCut)
		require.True(t, bill.TotalFreight.Equal(total))
		require.True(t, bill.NetAmount.Equal(net))
	}
}

func TestComputeMemo_ExcludesRTO(t *testing.T) {
	memo := &Memo{
		Freight:    d("20000"),
		Commission: d("1000"),
		Mamool:     d("200"),
		Detention:  d("300"),
		Extra:      d("100"),
		RTO:        d("999"),
		Advances: []AdvancePayment{
			{Date: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), Amount: d("5000")},
		},
	}
	ComputeMemo(memo)
	require.True(t, memo.NetAmount.Equal(d("19200")), "net amount %s", memo.NetAmount)
	require.True(t, memo.PaidAmount.Equal(d("5000")))
	require.True(t, memo.Balance.Equal(d("14200")))
}

func TestComputeLoadingSlip(t *testing.T) {
	slip := &LoadingSlip{Freight: d("15000.50"), Advance: d("4000.25")}
	ComputeLoadingSlip(slip)
	require.True(t, slip.Balance.Equal(d("11000.25")))
}

func TestValidateBill_MissingParty(t *testing.T) {
	err := ValidateBill(&Bill{BillNumber: "B-1", LoadingSlipID: "ls-1", Date: time.Now()})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrRequiredField))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "party_id", verr.Details)
}

func TestValidateBankingEntry_RejectsNegativeAndUnknownType(t *testing.T) {
	now := time.Now()
	err := ValidateBankingEntry(&BankingEntry{Type: "refund", Category: "party_payment", Date: now, Amount: d("10")})
	require.ErrorIs(t, err, ErrInvalidType)

	err = ValidateBankingEntry(&BankingEntry{Type: Credit, Category: "party_payment", Date: now, Amount: d("-10")})
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestCanonicalVehicleNo(t *testing.T) {
	require.Equal(t, "MH12AB1234", CanonicalVehicleNo(" mh-12 ab 1234 "))
}
