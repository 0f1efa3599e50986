// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tsctltransaction normalizes client center report records into transactions.
//
// Records from the three daily reports are tagged with their account, trade date and
// type. Amounts in a currency other than the account currency are converted at the
// trade date rate, keeping the original amount next to the converted one.
package tsctltransaction

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"unicode"

	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
)

// Type is the kind of a transaction.
type Type int

const (
	// TypeCashJournal is a cash movement such as a platform fee or interest.
	TypeCashJournal Type = iota + 1
	// TypePurchaseSale is a position closed on the trade date.
	TypePurchaseSale
	// TypeFees is the fees and commissions paid per contract traded.
	TypeFees
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeCashJournal:
		return "CASH_JOURNAL"
	case TypePurchaseSale:
		return "PURCHASE_SALE"
	case TypeFees:
		return "FEES"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Label returns the label used for the type in reports.
func (t Type) Label() string {
	switch t {
	case TypeCashJournal:
		return "Cash Journal"
	case TypePurchaseSale:
		return "Closed Positions"
	case TypeFees:
		return "Fees & Commissions"
	default:
		return t.String()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	switch t {
	case TypeCashJournal, TypePurchaseSale, TypeFees:
		return []byte(t.String()), nil
	default:
		return nil, fmt.Errorf("unknown transaction type: %d", int(t))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(data []byte) error {
	for _, candidate := range []Type{TypeCashJournal, TypePurchaseSale, TypeFees} {
		if string(data) == candidate.String() {
			*t = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown transaction type: %q", string(data))
}

// AmountKeys returns the record fields that hold amounts in the record currency.
func (t Type) AmountKeys() []string {
	switch t {
	case TypeCashJournal:
		return []string{"DebitCredit"}
	case TypePurchaseSale:
		return []string{"RealizedProfitLoss"}
	case TypeFees:
		return []string{"Commission", "Fees"}
	default:
		return nil
	}
}

// Transaction is a normalized record of one of the daily reports.
type Transaction struct {
	AccountID   string     `json:"account_id"`
	AccountName string     `json:"account_name"`
	TradeDate   xtime.Date `json:"trade_date"`
	Type        Type       `json:"type"`
	// Description never has trailing whitespace.
	Description string `json:"description"`
	// Currency is the currency of the amounts, or empty if the record has none.
	Currency string `json:"currency,omitempty"`
	// Fields holds the raw record fields. Amounts are json.Number values.
	Fields tradestation.Record `json:"fields"`
}

// New returns a new Transaction for the record.
//
// The description is taken from descriptionKey and right-trimmed.
func New(
	account tradestation.Account,
	tradeDate xtime.Date,
	transactionType Type,
	record tradestation.Record,
	descriptionKey string,
) Transaction {
	return Transaction{
		AccountID:   account.ID,
		AccountName: account.Name,
		TradeDate:   tradeDate,
		Type:        transactionType,
		Description: strings.TrimRightFunc(record.StringField(descriptionKey), unicode.IsSpace),
		Currency:    record.StringField("Currency"),
		Fields:      maps.Clone(record),
	}
}

// Amount returns the amount held in the field.
//
// Returns false if the field is absent or null.
func (t Transaction) Amount(key string) (decimal.Decimal, bool, error) {
	value, ok := t.Fields[key]
	if !ok || value == nil {
		return decimal.Decimal{}, false, nil
	}
	var amount decimal.Decimal
	var err error
	switch value := value.(type) {
	case json.Number:
		amount, err = decimal.NewFromString(value.String())
	case string:
		amount, err = decimal.NewFromString(strings.TrimSpace(value))
	case float64:
		amount = decimal.NewFromFloat(value)
	case decimal.Decimal:
		amount = value
	default:
		err = fmt.Errorf("unexpected type %T", value)
	}
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("field %s: %w", key, err)
	}
	return amount, true, nil
}

// Total returns the sum of the amounts of the transaction.
func (t Transaction) Total() (decimal.Decimal, error) {
	var total decimal.Decimal
	for _, key := range t.Type.AmountKeys() {
		amount, ok, err := t.Amount(key)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if ok {
			total = total.Add(amount)
		}
	}
	return total, nil
}

// TableHeaders returns the column headers for TableRow.
func TableHeaders() []string {
	return []string{"DATE", "ACCOUNT", "TYPE", "DESCRIPTION", "CURRENCY", "AMOUNT"}
}

// TableRow returns the transaction as a row for table and CSV output.
func (t Transaction) TableRow() ([]string, error) {
	total, err := t.Total()
	if err != nil {
		return nil, err
	}
	return []string{
		t.TradeDate.String(),
		t.AccountName,
		t.Type.Label(),
		t.Description,
		t.Currency,
		total.StringFixed(2),
	}, nil
}

// Include reports whether a cash journal description is kept.
//
// Transfers, currency conversions and incoming wires move money between accounts and
// are excluded. Matching is case-insensitive.
func Include(description string) bool {
	description = strings.ToLower(description)
	for _, exclusion := range exclusions {
		if strings.Contains(description, exclusion) {
			return false
		}
	}
	return true
}

// RateFunc returns the rate that converts one unit of base into quote on the date.
type RateFunc func(ctx context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error)

// ConvertCurrency converts the amounts of the transaction into the account currency.
//
// Each converted amount is rounded half to even to 2 places, and the original amount
// is kept under the key suffixed with the original currency (e.g. "DebitCreditGBP").
// This is a no-op if the transaction has no currency or is already in the account
// currency.
func ConvertCurrency(ctx context.Context, transaction *Transaction, account tradestation.Account, rate RateFunc) error {
	if transaction.Currency == "" || account.Currency == "" || strings.EqualFold(transaction.Currency, account.Currency) {
		return nil
	}
	base := strings.ToUpper(transaction.Currency)
	quote := strings.ToUpper(account.Currency)
	var conversionRate decimal.Decimal
	var haveRate bool
	fields := maps.Clone(transaction.Fields)
	for _, key := range transaction.Type.AmountKeys() {
		amount, ok, err := transaction.Amount(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !haveRate {
			conversionRate, err = rate(ctx, base, quote, transaction.TradeDate)
			if err != nil {
				return fmt.Errorf("rate %s.%s on %s: %w", base, quote, transaction.TradeDate, err)
			}
			haveRate = true
		}
		fields[key+base] = transaction.Fields[key]
		fields[key] = json.Number(amount.Mul(conversionRate).RoundBank(2).StringFixed(2))
	}
	transaction.Fields = fields
	transaction.Currency = account.Currency
	return nil
}

// *** PRIVATE ***

var exclusions = []string{
	"transfer",
	"currency conversion",
	"wire in",
}
