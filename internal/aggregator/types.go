package aggregator

import "time"

type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	TransactionTotalDays string   `json:"transaction_total_days"`
	Countries            []string `json:"countries"`
	Logo                 string   `json:"logo"`
}

type RequisitionInput struct {
	InstitutionID string `json:"institution_id"`
	RedirectURL   string `json:"redirect"`
	Reference     string `json:"reference"`
	UserLanguage  string `json:"user_language,omitempty"`
}

type Requisition struct {
	ID            string    `json:"id"`
	Created       time.Time `json:"created"`
	Redirect      string    `json:"redirect"`
	Status        string    `json:"status"`
	InstitutionID string    `json:"institution_id"`
	Reference     string    `json:"reference"`
	Accounts      []string  `json:"accounts"`
	Link          string    `json:"link"`
}

type AccountDetails struct {
	ResourceID string `json:"resourceId"`
	IBAN       string `json:"iban"`
	Currency   string `json:"currency"`
	OwnerName  string `json:"ownerName"`
	Name       string `json:"name"`
	Product    string `json:"product"`
}

type accountDetailsResponse struct {
	Account AccountDetails `json:"account"`
}

type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type Balance struct {
	BalanceAmount Amount `json:"balanceAmount"`
	BalanceType   string `json:"balanceType"`
	ReferenceDate string `json:"referenceDate,omitempty"`
}

type balancesResponse struct {
	Balances []Balance `json:"balances"`
}

// Transaction is a booked transaction as returned by the aggregator. Only
// the fields the pipeline consumes are declared.
type Transaction struct {
	TransactionID                     string `json:"transactionId,omitempty"`
	InternalTransactionID             string `json:"internalTransactionId,omitempty"`
	BookingDate                       string `json:"bookingDate,omitempty"`
	ValueDate                         string `json:"valueDate,omitempty"`
	TransactionAmount                 Amount `json:"transactionAmount"`
	RemittanceInformationUnstructured string `json:"remittanceInformationUnstructured,omitempty"`
	CreditorName                      string `json:"creditorName,omitempty"`
	DebtorName                        string `json:"debtorName,omitempty"`
}

type transactionsResponse struct {
	Transactions struct {
		Booked  []Transaction `json:"booked"`
		Pending []Transaction `json:"pending"`
	} `json:"transactions"`
}

type tokenResponse struct {
	Access        string `json:"access"`
	AccessExpires int    `json:"access_expires"`
}

type errorResponse struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}
