package entities

import "strings"

// Instrument identifies one of the money pools an account holds
type Instrument string

const (
	InstrumentCash   Instrument = "cash"
	InstrumentBank   Instrument = "bank"
	InstrumentDebit  Instrument = "debit"  // Card linked to the bank balance
	InstrumentCredit Instrument = "credit" // Credit line, balance is outstanding debt
)

// AllInstruments lists every instrument in display order
var AllInstruments = []Instrument{InstrumentCash, InstrumentBank, InstrumentDebit, InstrumentCredit}

// ParseInstrument converts user input into an Instrument
func ParseInstrument(s string) (Instrument, error) {
	inst := Instrument(strings.ToLower(strings.TrimSpace(s)))
	if !inst.IsValid() {
		return "", NewValidationError("instrument", "unknown instrument %q", s)
	}
	return inst, nil
}

// IsValid checks if the instrument is one of the known instruments
func (i Instrument) IsValid() bool {
	switch i {
	case InstrumentCash, InstrumentBank, InstrumentDebit, InstrumentCredit:
		return true
	}
	return false
}

// IsCredit reports whether balances on this instrument are debt
func (i Instrument) IsCredit() bool {
	return i == InstrumentCredit
}

// StorageInstrument returns the balance row the instrument draws on.
// Debit card movements hit the bank balance.
func (i Instrument) StorageInstrument() Instrument {
	if i == InstrumentDebit {
		return InstrumentBank
	}
	return i
}
