package budget

import (
	"errors"
	"math"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// MaxAmount: наибольшая сумма, которую вмещает NUMERIC(14,2).
const MaxAmount = 999_999_999_999.99

// Ledger хранит общий бюджет и остаток. Инвариант: 0 <= remaining <= total.
// Нулевое значение готово к использованию.
type Ledger struct {
	total     float64
	remaining float64
}

// Restore восстанавливает леджер из сохраненного состояния, приводя его к инварианту.
func Restore(total, remaining float64) Ledger {
	if !validAmount(total) {
		total = 0
	}
	if !validAmount(remaining) {
		remaining = 0
	}
	if remaining > total {
		remaining = total
	}

	return Ledger{total: total, remaining: remaining}
}

// SetBudget задает общий бюджет и сбрасывает учет трат.
func (l *Ledger) SetBudget(amount float64) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}

	l.total = amount
	l.remaining = amount
	return nil
}

// Spend списывает сумму с остатка. Остаток не опускается ниже нуля.
func (l *Ledger) Spend(amount float64) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}

	l.remaining = math.Max(0, l.remaining-amount)
	return nil
}

// Reset обнуляет бюджет и остаток.
func (l *Ledger) Reset() {
	l.total = 0
	l.remaining = 0
}

func (l Ledger) Total() float64 {
	return l.total
}

func (l Ledger) Remaining() float64 {
	return l.remaining
}

// Spent возвращает уже списанную часть бюджета.
func (l Ledger) Spent() float64 {
	return l.total - l.remaining
}

// CheckAmount проверяет сумму бюджета или списания.
func CheckAmount(amount float64) error {
	if !validAmount(amount) || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

func validAmount(amount float64) bool {
	return amount >= 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}
