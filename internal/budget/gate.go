package budget

import "math"

// CanAdd сообщает, укладывается ли покупка в бюджет: spentSoFar + price <= total.
// Суммы сравниваются в целых центах.
func CanAdd(spentSoFar, price, total float64) bool {
	return Cents(spentSoFar)+Cents(price) <= Cents(total)
}

// Cents переводит сумму в целые центы с округлением.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Admit проверяет покупку перед изменением корзины.
func Admit(spentSoFar, price, total float64) error {
	if !validAmount(price) || !validAmount(spentSoFar) {
		return ErrInvalidAmount
	}

	if !CanAdd(spentSoFar, price, total) {
		return ErrBudgetExceeded
	}

	return nil
}

// AdmitCart проверяет добавление в корзину с учетом уже списанного по леджеру.
func AdmitCart(ledger Ledger, cartTotal, price float64) error {
	return Admit(ledger.Spent()+cartTotal, price, ledger.Total())
}

// AdmitCheckout проверяет, что корзина целиком покрывается остатком.
func AdmitCheckout(ledger Ledger, cartTotal float64) error {
	return Admit(0, cartTotal, ledger.Remaining())
}
