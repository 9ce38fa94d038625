// Package statuscode is the acquirer's transaction status catalog.
package statuscode

// Unknown is returned for codes the acquirer has not documented.
const Unknown = "UNKNOWN"

const (
	Init                      = 1
	SentToBank                = 2
	HoldOK                    = 3
	DmsHoldFailed             = 4
	SmsFailedSms              = 5
	DmsChargeFailed           = 6
	Success                   = 7
	Expired                   = 8
	HoldExpired               = 9
	RefundFailed              = 11
	RefundPending             = 12
	RefundSuccess             = 13
	DmsCancelOK               = 15
	DmsCancelFailed           = 16
	Reversed                  = 17
	InputValidationFailed     = 18
	BRValidationFailed        = 19
	TerminalGroupSelectFailed = 20
	TerminalSelectFailed      = 21
	DeclinedByBRAction        = 23
	WaitingCardFormFill       = 25
	MPIURLGenerated           = 26
	WaitingMPI                = 27
	MPIFailed                 = 28
	MPINotReachable           = 29
	InsideFormURLSent         = 30
	MPIAuthFailed             = 31
	AcquirerNotReachable      = 32
	ReversalFailed            = 33
	CreditFailed              = 34
	P2PFailed                 = 35
)

type entry struct {
	name string
	help string
}

var catalog = map[int]entry{
	Init:                      {"INIT", "Successful transaction start."},
	SentToBank:                {"SENT_TO_BANK", "Awaiting response from acquirer."},
	HoldOK:                    {"HOLD_OK", "Funds successfully reserved."},
	DmsHoldFailed:             {"DMS_HOLD_FAILED", "Fund reservation failed."},
	SmsFailedSms:              {"SMS_FAILED_SMS", "SMS transaction failed."},
	DmsChargeFailed:           {"DMS_CHARGE_FAILED", "Reserved fund charge failed."},
	Success:                   {"SUCCESS", "Funds successfully transferred."},
	Expired:                   {"EXPIRED", "Time given to perform current action is expired."},
	HoldExpired:               {"HOLD_EXPIRED", "Fund reservation is expired."},
	RefundFailed:              {"REFUND_FAILED", "Failed to perform REFUND transaction."},
	RefundPending:             {"REFUND_PENDING", "Refund request is in process."},
	RefundSuccess:             {"REFUND_SUCCESS", "Successful refund operation."},
	DmsCancelOK:               {"DMS_CANCEL_OK", "Reservation successfully canceled."},
	DmsCancelFailed:           {"DMS_CANCEL_FAILED", "Failed to cancel reserved funds."},
	Reversed:                  {"REVERSED", "Operation successfully reversed."},
	InputValidationFailed:     {"INPUT_VALIDATION_FAILED", "Invalid payload data provided."},
	BRValidationFailed:        {"BR_VALIDATION_FAILED", "Business rules declined current action."},
	TerminalGroupSelectFailed: {"TERMINAL_GROUP_SELECT_FAILED", "Failed to select terminal group."},
	TerminalSelectFailed:      {"TERMINAL_SELECT_FAILED", "Failed to select terminal."},
	DeclinedByBRAction:        {"DECLINED_BY_BR_ACTION", "Business rules declined current action."},
	WaitingCardFormFill:       {"WAITING_CARD_FORM_FILL", "Transaction is waiting till cardholder enters card data."},
	MPIURLGenerated:           {"MPI_URL_GENERATED", "Gateway provided URL to proceed with 3D authentication."},
	WaitingMPI:                {"WAITING_MPI", "Transaction is waiting for 3D authentication."},
	MPIFailed:                 {"MPI_FAILED", "3D authentication failed."},
	MPINotReachable:           {"MPI_NOT_REACHABLE", "3D authentication service is unavailable."},
	InsideFormURLSent:         {"INSIDE_FORM_URL_SENT", "Gateway provided URL where inside form resides."},
	MPIAuthFailed:             {"MPI_AUTH_FAILED", "3D service declined transaction."},
	AcquirerNotReachable:      {"ACQUIRER_NOT_REACHABLE", "Acquirer service is unavailable."},
	ReversalFailed:            {"REVERSAL_FAILED", "Failed to reverse given transaction."},
	CreditFailed:              {"CREDIT_FAILED", "Failed to process credit transaction."},
	P2PFailed:                 {"P2P_FAILED", "Failed to process P2P transaction."},
}

// Describe returns the human readable text for code, or Unknown.
func Describe(code int) string {
	if e, ok := catalog[code]; ok {
		return e.help
	}
	return Unknown
}

// Name returns the symbolic name for code, or Unknown.
func Name(code int) string {
	if e, ok := catalog[code]; ok {
		return e.name
	}
	return Unknown
}

func IsKnown(code int) bool {
	_, ok := catalog[code]
	return ok
}

// IsInFlight reports codes after which the acquirer will still send a final outcome.
func IsInFlight(code int) bool {
	switch code {
	case Init, SentToBank, RefundPending, WaitingCardFormFill, MPIURLGenerated, WaitingMPI, InsideFormURLSent:
		return true
	}
	return false
}
