package handler

import (
	"custodia/internal/ledger/models"
	id "custodia/pkg/domain"
)

type tokenResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	State       string `json:"state"`
}

type accountResponse struct {
	Address       string `json:"address"`
	Balance       string `json:"balance"`
	ActiveBalance string `json:"active_balance"`
	FrozenTokens  string `json:"frozen_tokens"`
	Frozen        bool   `json:"frozen"`
}

type allowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

type lifecycleResponse struct {
	State string `json:"state"`
}

type roleResponse struct {
	Role    string `json:"role"`
	Account string `json:"account"`
	Held    bool   `json:"held"`
}

type restrictionResponse struct {
	Code    uint8  `json:"code"`
	Message string `json:"message"`
}

func newRestrictionResponse(code models.RestrictionCode, message string) restrictionResponse {
	return restrictionResponse{Code: uint8(code), Message: message}
}

type auditEventResponse struct {
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor,omitempty"`
	Action    string `json:"action"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Role      string `json:"role,omitempty"`
	Code      uint8  `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func addrOrEmpty(a id.Address) string {
	if a.IsZero() {
		return ""
	}
	return a.String()
}
