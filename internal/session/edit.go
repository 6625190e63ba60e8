package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang-bankrec-service/pkg/errors"
	"golang-bankrec-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Editable fields.
const (
	FieldAccount              = "account"
	FieldBalance              = "balance"
	FieldAmountCurrency       = "amount_currency"
	FieldCurrency             = "currency"
	FieldPartner              = "partner"
	FieldTaxes                = "taxes"
	FieldAnalyticDistribution = "analytic_distribution"
	FieldName                 = "name"
)

// EditField parses value and applies it to a field of the line with the
// given index.
func (s *Session) EditField(ctx context.Context, index int, field, value string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	value = strings.TrimSpace(value)

	var err error
	switch field {
	case FieldAccount, FieldPartner:
		var id int64
		if value != "" {
			id, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				return invalidValue(field, value)
			}
		}
		if field == FieldAccount {
			err = s.SetAccount(index, id)
		} else {
			err = s.SetPartner(index, id)
		}

	case FieldBalance, FieldAmountCurrency:
		amount, perr := decimal.NewFromString(value)
		if perr != nil {
			return invalidValue(field, value)
		}
		if field == FieldBalance {
			err = s.SetBalance(index, amount)
		} else {
			err = s.SetAmountCurrency(index, amount)
		}

	case FieldCurrency:
		err = s.SetCurrency(index, strings.ToUpper(value))

	case FieldTaxes:
		var ids []int64
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, perr := strconv.ParseInt(part, 10, 64)
			if perr != nil {
				return invalidValue(field, value)
			}
			ids = append(ids, id)
		}
		err = s.SetTaxes(index, ids)

	case FieldAnalyticDistribution:
		var distribution map[string]decimal.Decimal
		if value != "" {
			if perr := json.Unmarshal([]byte(value), &distribution); perr != nil {
				return invalidValue(field, value)
			}
		}
		err = s.SetAnalyticDistribution(index, distribution)

	case FieldName:
		err = s.SetName(index, value)

	default:
		return errors.InvalidError(errors.CodeInvalidField, fmt.Sprintf("unknown field %q", field))
	}
	if err != nil {
		return err
	}

	s.log.WithFields(logger.Fields{"index": index, "field": field}).Debug("Line edited")
	return nil
}

func invalidValue(field, value string) error {
	return errors.InvalidError(errors.CodeInvalidValue, fmt.Sprintf("invalid value %q for %s", value, field))
}

func readOnly(l *Line, field string) error {
	return errors.InvalidError(errors.CodeReadOnlyLine,
		fmt.Sprintf("%s cannot be changed on a %s line", field, l.Flag)).WithContext("index", l.Index)
}

// editable mounts the line and turns an auto-balance line into a manual one.
func (s *Session) editable(index int) (*Line, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	l, err := s.mount(index)
	if err != nil {
		return nil, err
	}
	if l.Flag == FlagAutoBalance {
		l.Flag = FlagManual
		l.Manual = &ManualPart{}
	}
	return l, nil
}

// SetAccount changes the account of a line. A manual line without taxes
// takes the default taxes of its new account.
func (s *Session) SetAccount(index int, accountID int64) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	switch l.Flag {
	case FlagLiquidity, FlagMatched:
		return readOnly(l, FieldAccount)
	}
	account, err := s.deps.Chart.Account(accountID)
	if err != nil {
		return errors.InvalidError(errors.CodeInvalidValue, fmt.Sprintf("unknown account %d", accountID))
	}
	l.AccountID = account.ID

	if l.Flag == FlagManual {
		if len(l.TaxIDs) == 0 && len(account.DefaultTaxIDs) > 0 {
			l.TaxIDs = append([]int64(nil), account.DefaultTaxIDs...)
			l.Manual.ForcePriceIncluded = true
			l.Manual.TaxBaseAmountCurrency = l.AmountCurrency
		}
		s.recomputeTaxes()
	}
	s.recomputeAutoBalance()
	return nil
}

// SetBalance changes the company amount of a line.
func (s *Session) SetBalance(index int, amount decimal.Decimal) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	amount = s.companyCur.Round(amount)

	switch l.Flag {
	case FlagLiquidity:
		return readOnly(l, FieldBalance)
	case FlagMatched:
		s.setMatchedBalance(l, amount)
		return nil
	case FlagManual:
		l.Balance = amount
		if l.Currency.Equal(s.companyCur) {
			l.AmountCurrency = amount
		}
		// A taxed line takes the typed balance as the tax-included total
		// until its taxes are cleared.
		l.Manual.ForcePriceIncluded = len(l.TaxIDs) > 0
		if l.Manual.ForcePriceIncluded {
			l.Manual.TaxBaseAmountCurrency = s.fromCompany(amount, l.Currency)
		}
		s.recomputeTaxes()
	default:
		l.Balance = amount
		if l.Currency.Equal(s.companyCur) {
			l.AmountCurrency = amount
		}
	}
	s.recomputeAutoBalance()
	return nil
}

// SetAmountCurrency changes the amount of a line in its own currency.
func (s *Session) SetAmountCurrency(index int, amount decimal.Decimal) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	amount = l.Currency.Round(amount)

	switch l.Flag {
	case FlagLiquidity:
		return readOnly(l, FieldAmountCurrency)
	case FlagMatched:
		s.setMatchedAmountCurrency(l, amount)
		return nil
	case FlagManual:
		l.AmountCurrency = amount
		l.Balance = s.toCompany(amount, l.Currency)
		l.Manual.ForcePriceIncluded = false
		s.recomputeTaxes()
	default:
		l.AmountCurrency = amount
		l.Balance = s.toCompany(amount, l.Currency)
	}
	s.recomputeAutoBalance()
	return nil
}

// SetCurrency changes the currency of a manual line and converts its
// amount to the company currency again.
func (s *Session) SetCurrency(index int, code string) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	if l.Flag != FlagManual {
		return readOnly(l, FieldCurrency)
	}
	cur, err := s.deps.Chart.Currency(code)
	if err != nil {
		return errors.InvalidError(errors.CodeInvalidValue, fmt.Sprintf("unknown currency %q", code))
	}
	l.Currency = cur
	l.AmountCurrency = cur.Round(l.AmountCurrency)
	l.Balance = s.toCompany(l.AmountCurrency, cur)
	s.recomputeTaxes()
	s.recomputeAutoBalance()
	return nil
}

// SetPartner changes a partner. On the liquidity line it changes the
// session partner, on a manual line it also picks the partner account.
func (s *Session) SetPartner(index int, partnerID int64) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	var accountID int64
	if partnerID != 0 {
		p, err := s.deps.Chart.Partner(partnerID)
		if err != nil {
			return errors.InvalidError(errors.CodeInvalidValue, fmt.Sprintf("unknown partner %d", partnerID))
		}
		accountID = s.deps.Chart.DefaultAccount(p, s.statementLine.Amount)
	}

	switch l.Flag {
	case FlagMatched:
		return readOnly(l, FieldPartner)
	case FlagLiquidity:
		s.partnerID = partnerID
		l.PartnerID = partnerID
		for _, t := range s.linesWithFlag(FlagTax) {
			t.PartnerID = partnerID
		}
	case FlagManual:
		l.PartnerID = partnerID
		if accountID != 0 {
			l.AccountID = accountID
		}
	default:
		l.PartnerID = partnerID
	}
	s.recomputeAutoBalance()
	return nil
}

// SetTaxes replaces the taxes of a manual line. Adding taxes to a line
// without any makes its amount the tax-included total; removing them all
// restores that total.
func (s *Session) SetTaxes(index int, taxIDs []int64) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	if l.Flag != FlagManual {
		return readOnly(l, FieldTaxes)
	}
	if _, err := s.deps.Chart.Taxes(taxIDs); err != nil {
		return errors.InvalidError(errors.CodeInvalidValue, err.Error())
	}

	switch {
	case len(l.TaxIDs) == 0 && len(taxIDs) > 0 && !l.Manual.ForcePriceIncluded:
		l.Manual.ForcePriceIncluded = true
		l.Manual.TaxBaseAmountCurrency = l.AmountCurrency
	case len(taxIDs) == 0 && l.Manual.ForcePriceIncluded:
		l.AmountCurrency = l.Manual.TaxBaseAmountCurrency
		l.Balance = s.toCompany(l.AmountCurrency, l.Currency)
		l.Manual.ForcePriceIncluded = false
	}
	l.TaxIDs = append([]int64(nil), taxIDs...)

	s.recomputeTaxes()
	s.recomputeAutoBalance()
	return nil
}

// SetAnalyticDistribution replaces the analytic distribution of a line.
func (s *Session) SetAnalyticDistribution(index int, distribution map[string]decimal.Decimal) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	l.Analytic = distribution
	s.recomputeAutoBalance()
	return nil
}

// SetName changes the label of a line.
func (s *Session) SetName(index int, name string) error {
	l, err := s.editable(index)
	if err != nil {
		return err
	}
	l.Name = name
	s.recomputeAutoBalance()
	return nil
}
