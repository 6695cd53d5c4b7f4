package handler

import (
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Request DTOs carry wire strings; Validate parses them into domain types so
// handlers never see raw input.

func parseAddr(field, value string) (id.Address, error) {
	addr, err := id.ParseAddress(value)
	if err != nil {
		return id.Address{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s: %s", field, err.Error())
	}
	return addr, nil
}

func parseAmount(field, value string) (id.Amount, error) {
	amount, err := id.ParseAmount(value)
	if err != nil {
		return id.Amount{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s: %s", field, err.Error())
	}
	return amount, nil
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`

	to     id.Address
	amount id.Amount
}

func (r *transferRequest) Validate() error {
	var err error
	if r.to, err = parseAddr("to", r.To); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type transferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`

	from   id.Address
	to     id.Address
	amount id.Amount
}

func (r *transferFromRequest) Validate() error {
	var err error
	if r.from, err = parseAddr("from", r.From); err != nil {
		return err
	}
	if r.to, err = parseAddr("to", r.To); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type batchTransferRequest struct {
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`

	recipients []id.Address
	amounts    []id.Amount
}

func (r *batchTransferRequest) Validate() error {
	if len(r.Recipients) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "recipients is required")
	}
	if len(r.Recipients) != len(r.Amounts) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d recipients, %d amounts", len(r.Recipients), len(r.Amounts))
	}
	r.recipients = make([]id.Address, len(r.Recipients))
	r.amounts = make([]id.Amount, len(r.Amounts))
	for i := range r.Recipients {
		var err error
		if r.recipients[i], err = parseAddr("recipients", r.Recipients[i]); err != nil {
			return err
		}
		if r.amounts[i], err = parseAmount("amounts", r.Amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

type batchBurnRequest struct {
	Holders []string `json:"holders"`
	Amounts []string `json:"amounts"`

	holders []id.Address
	amounts []id.Amount
}

func (r *batchBurnRequest) Validate() error {
	if len(r.Holders) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "holders is required")
	}
	if len(r.Holders) != len(r.Amounts) {
		return dErrors.Newf(dErrors.CodeInvalidInput,
			"batch length mismatch: %d holders, %d amounts", len(r.Holders), len(r.Amounts))
	}
	r.holders = make([]id.Address, len(r.Holders))
	r.amounts = make([]id.Amount, len(r.Amounts))
	for i := range r.Holders {
		var err error
		if r.holders[i], err = parseAddr("holders", r.Holders[i]); err != nil {
			return err
		}
		if r.amounts[i], err = parseAmount("amounts", r.Amounts[i]); err != nil {
			return err
		}
	}
	return nil
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`

	spender id.Address
	amount  id.Amount
}

func (r *approveRequest) Validate() error {
	var err error
	if r.spender, err = parseAddr("spender", r.Spender); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`

	to     id.Address
	amount id.Amount
}

func (r *mintRequest) Validate() error {
	var err error
	if r.to, err = parseAddr("to", r.To); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type burnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`

	from   id.Address
	amount id.Amount
}

func (r *burnRequest) Validate() error {
	var err error
	if r.from, err = parseAddr("from", r.From); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type freezeAddressRequest struct {
	Account string `json:"account"`
	Frozen  bool   `json:"frozen"`

	account id.Address
}

func (r *freezeAddressRequest) Validate() error {
	var err error
	r.account, err = parseAddr("account", r.Account)
	return err
}

type batchFreezeAddressRequest struct {
	Accounts []string `json:"accounts"`
	Frozen   []bool   `json:"frozen"`

	accounts []id.Address
}

func (r *batchFreezeAddressRequest) Validate() error {
	if len(r.Accounts) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "accounts is required")
	}
	// Length mismatches pass through to the service so a mismatched batch
	// is rejected by the same path whatever the entry point.
	r.accounts = make([]id.Address, len(r.Accounts))
	for i := range r.Accounts {
		var err error
		if r.accounts[i], err = parseAddr("accounts", r.Accounts[i]); err != nil {
			return err
		}
	}
	return nil
}

type freezeTokensRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`

	account id.Address
	amount  id.Amount
}

func (r *freezeTokensRequest) Validate() error {
	var err error
	if r.account, err = parseAddr("account", r.Account); err != nil {
		return err
	}
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}

type roleRequest struct {
	Role    string `json:"role"`
	Account string `json:"account"`

	role    id.RoleID
	account id.Address
}

func (r *roleRequest) Validate() error {
	role, err := id.ParseRoleID(r.Role)
	if err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "role: %s", err.Error())
	}
	r.role = role
	r.account, err = parseAddr("account", r.Account)
	return err
}

type metadataRequest struct {
	Value string `json:"value"`
}

func (r *metadataRequest) Validate() error {
	if r.Value == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "value is required")
	}
	return nil
}

type setEngineRequest struct {
	Kind   string `json:"kind"`
	Handle string `json:"handle"`
	// Endpoint is the base URL of the engine; empty together with Handle
	// clears the slot.
	Endpoint string `json:"endpoint,omitempty"`
}

func (r *setEngineRequest) Validate() error {
	if r.Kind == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "kind is required")
	}
	return nil
}

type restrictionCheckRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`

	from   id.Address
	to     id.Address
	amount id.Amount
}

// Validate accepts the zero address on either side: the check endpoint is
// also used to probe the mint and burn paths.
func (r *restrictionCheckRequest) Validate() error {
	if err := r.from.UnmarshalText([]byte(r.From)); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "from: %s", err.Error())
	}
	if err := r.to.UnmarshalText([]byte(r.To)); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "to: %s", err.Error())
	}
	var err error
	r.amount, err = parseAmount("amount", r.Amount)
	return err
}
