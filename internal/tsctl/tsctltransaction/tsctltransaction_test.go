// Copyright 2026 Peter Edge
//
// All rights reserved.

package tsctltransaction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bufdev/tsctl/internal/pkg/tradestation"
	"github.com/bufdev/tsctl/internal/standard/xtime"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testDate    = xtime.Date{Year: 2024, Month: time.March, Day: 5}
	testAccount = tradestation.Account{ID: "123", Name: "SIM123", TypeDescription: "Margin", Currency: "USD"}
)

func TestInclude(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		description string
		include     bool
	}{
		{description: "Monthly Platform Fee", include: true},
		{description: "Interest", include: true},
		{description: "", include: true},
		{description: "TRANSFER TO FUTURES", include: false},
		{description: "Journal transfer", include: false},
		{description: "Currency Conversion GBP/USD", include: false},
		{description: "WIRE IN 0042", include: false},
		{description: "Wire out", include: true},
	}
	for _, testCase := range testCases {
		require.Equal(t, testCase.include, Include(testCase.description), testCase.description)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypePurchaseSale,
		tradestation.Record{
			"Contract":           "ESM4 \t ",
			"Currency":           "USD",
			"RealizedProfitLoss": json.Number("125.00"),
		},
		"Contract",
	)
	require.Equal(t, "123", transaction.AccountID)
	require.Equal(t, "SIM123", transaction.AccountName)
	require.Equal(t, testDate, transaction.TradeDate)
	require.Equal(t, TypePurchaseSale, transaction.Type)
	require.Equal(t, "ESM4", transaction.Description)
	require.Equal(t, "USD", transaction.Currency)
	amount, ok, err := transaction.Amount("RealizedProfitLoss")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, decimal.RequireFromString("125").Equal(amount))
	_, ok, err = transaction.Amount("Missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConvertCurrency(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypeCashJournal,
		tradestation.Record{
			"Description": "Interest",
			"Currency":    "GBP",
			"DebitCredit": json.Number("100.004"),
		},
		"Description",
	)
	var calls int
	err := ConvertCurrency(
		context.Background(),
		&transaction,
		testAccount,
		func(_ context.Context, base string, quote string, date xtime.Date) (decimal.Decimal, error) {
			calls++
			require.Equal(t, "GBP", base)
			require.Equal(t, "USD", quote)
			require.Equal(t, testDate, date)
			return decimal.RequireFromString("1.27"), nil
		},
	)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, "USD", transaction.Currency)
	require.Equal(t, json.Number("127.01"), transaction.Fields["DebitCredit"])
	require.Equal(t, json.Number("100.004"), transaction.Fields["DebitCreditGBP"])
}

func TestConvertCurrencyFees(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypeFees,
		tradestation.Record{
			"Contract":   "FDAX",
			"Currency":   "EUR",
			"Commission": json.Number("2.125"),
			"Fees":       json.Number("-0.5"),
		},
		"Contract",
	)
	err := ConvertCurrency(
		context.Background(),
		&transaction,
		testAccount,
		func(context.Context, string, string, xtime.Date) (decimal.Decimal, error) {
			return decimal.RequireFromString("1"), nil
		},
	)
	require.NoError(t, err)
	// Half to even.
	require.Equal(t, json.Number("2.12"), transaction.Fields["Commission"])
	require.Equal(t, json.Number("-0.50"), transaction.Fields["Fees"])
	require.Equal(t, json.Number("2.125"), transaction.Fields["CommissionEUR"])
	require.Equal(t, json.Number("-0.5"), transaction.Fields["FeesEUR"])
}

func TestConvertCurrencyNoOp(t *testing.T) {
	t.Parallel()
	failingRate := func(context.Context, string, string, xtime.Date) (decimal.Decimal, error) {
		return decimal.Decimal{}, errors.New("should not be called")
	}
	for _, currency := range []string{"USD", "usd", ""} {
		record := tradestation.Record{
			"Description": "Interest",
			"DebitCredit": json.Number("100.004"),
		}
		if currency != "" {
			record["Currency"] = currency
		}
		transaction := New(testAccount, testDate, TypeCashJournal, record, "Description")
		require.NoError(t, ConvertCurrency(context.Background(), &transaction, testAccount, failingRate))
		require.Equal(t, record, transaction.Fields)
	}
}

func TestConvertCurrencyRateError(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypeCashJournal,
		tradestation.Record{"Currency": "GBP", "DebitCredit": json.Number("1")},
		"Description",
	)
	rateErr := errors.New("rate unavailable")
	err := ConvertCurrency(
		context.Background(),
		&transaction,
		testAccount,
		func(context.Context, string, string, xtime.Date) (decimal.Decimal, error) {
			return decimal.Decimal{}, rateErr
		},
	)
	require.ErrorIs(t, err, rateErr)
	require.Equal(t, "GBP", transaction.Currency)
	require.Equal(t, json.Number("1"), transaction.Fields["DebitCredit"])
}

func TestTypeText(t *testing.T) {
	t.Parallel()
	data, err := json.Marshal([]Type{TypeCashJournal, TypePurchaseSale, TypeFees})
	require.NoError(t, err)
	require.JSONEq(t, `["CASH_JOURNAL","PURCHASE_SALE","FEES"]`, string(data))
	require.Equal(t, "Fees & Commissions", TypeFees.Label())
	_, err = Type(0).MarshalText()
	require.Error(t, err)
}

func TestTableRow(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypeFees,
		tradestation.Record{
			"Contract":   "ESM4",
			"Currency":   "USD",
			"Commission": json.Number("-2.25"),
			"Fees":       "-0.5",
		},
		"Contract",
	)
	row, err := transaction.TableRow()
	require.NoError(t, err)
	require.Len(t, row, len(TableHeaders()))
	require.Equal(t, []string{"2024-03-05", "SIM123", "Fees & Commissions", "ESM4", "USD", "-2.75"}, row)

	transaction.Fields["Fees"] = true
	_, err = transaction.TableRow()
	require.ErrorContains(t, err, "field Fees")
}

func TestTransactionJSON(t *testing.T) {
	t.Parallel()
	transaction := New(
		testAccount,
		testDate,
		TypeCashJournal,
		tradestation.Record{"Description": "Interest", "DebitCredit": json.Number("0.12")},
		"Description",
	)
	data, err := json.Marshal(transaction)
	require.NoError(t, err)
	require.JSONEq(
		t,
		`{
			"account_id": "123",
			"account_name": "SIM123",
			"trade_date": "2024-03-05",
			"type": "CASH_JOURNAL",
			"description": "Interest",
			"fields": {"Description": "Interest", "DebitCredit": 0.12}
		}`,
		string(data),
	)
	var decoded Transaction
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, TypeCashJournal, decoded.Type)
	require.Equal(t, testDate, decoded.TradeDate)
	require.Equal(t, "Interest", decoded.Description)
}
