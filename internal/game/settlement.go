package game

import (
	"github.com/alexbotov/cascade/internal/domain"
	"github.com/shopspring/decimal"
)

// Settlement is the wallet plan for one finished round. Credit and Loss are
// each applied at most once, and only after the single debit of Cost.
type Settlement struct {
	Stake  domain.Money `json:"stake"`
	Cost   domain.Money `json:"cost"`
	Payout domain.Money `json:"payout"`
	// Credit is the aggregate win paid back, zero when nothing is paid
	Credit domain.Money `json:"credit"`
	// Loss is Cost minus Payout when the round returned less than it charged
	Loss domain.Money `json:"loss"`
	// Win is true only when the payout exceeds what the round charged
	Win bool `json:"win"`
}

// Settle normalises a round payout and derives its wallet plan. The loss and
// the win rule are measured against cost, which equals stake for base rounds.
func Settle(stake, cost domain.Money, payout decimal.Decimal) Settlement {
	paid := domain.MoneyFromDecimal(payout, cost.Currency)
	s := Settlement{
		Stake:  stake,
		Cost:   cost,
		Payout: paid,
		Credit: domain.Money{Currency: cost.Currency},
		Loss:   domain.Money{Currency: cost.Currency},
		Win:    paid.Amount > cost.Amount,
	}
	if paid.IsPositive() {
		s.Credit = paid
	}
	if paid.Amount < cost.Amount {
		s.Loss = cost.Sub(paid)
	}
	return s
}

// Net is the player's result for the round, negative on a loss
func (s Settlement) Net() domain.Money {
	return s.Payout.Sub(s.Cost)
}
