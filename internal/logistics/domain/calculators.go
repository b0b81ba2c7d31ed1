package logistics

import "github.com/shopspring/decimal"

// ComputeLoadingSlip derives balance = freight - advance.
func ComputeLoadingSlip(s *LoadingSlip) {
	if s == nil {
		return
	}
	s.Balance = s.Freight.Sub(s.Advance)
}

// ComputeMemo derives net_amount = freight - commission - mamool + detention + extra.
// RTO is recorded on the memo but does not enter the net amount.
func ComputeMemo(m *Memo) {
	if m == nil {
		return
	}
	m.NetAmount = m.Freight.
		Sub(m.Commission).
		Sub(m.Mamool).
		Add(m.Detention).
		Add(m.Extra)
	m.PaidAmount = SumAdvances(m.Advances)
	m.Balance = m.NetAmount.Sub(m.PaidAmount)
}

// ComputeBill derives total_freight and net_amount.
//
//	total_freight = bill_amount + detention + extra + rto
//	net_amount    = total_freight - mamool - penalties - tds - party_commission_cut
func ComputeBill(b *Bill) {
	if b == nil {
		return
	}
	b.TotalFreight = b.BillAmount.
		Add(b.Detention).
		Add(b.Extra).
		Add(b.RTO)
	b.NetAmount = b.TotalFreight.
		Sub(b.Mamool).
		Sub(b.Penalties).
		Sub(b.TDS).
		Sub(b.PartyCommissionCut)
	b.PaidAmount = SumAdvances(b.Advances)
	b.Balance = b.NetAmount.Sub(b.PaidAmount)
}

// SumAdvances totals advance payments.
func SumAdvances(advances []AdvancePayment) decimal.Decimal {
	total := decimal.Zero
	for _, adv := range advances {
		total = total.Add(adv.Amount)
	}
	return total
}
