package tradix

// AuthenticateRequest carries Tradix API credentials
type AuthenticateRequest struct {
	APIKey    string `json:"apiKey"`
	Signature string `json:"signature"`
	Nonce     string `json:"nonce"`
}

// SendOrderRequest submits an order to Tradix
type SendOrderRequest struct {
	ClientOrderRef string `json:"clientOrderRef"`
	Symbol         string `json:"symbol"`
	Side           string `json:"side"`
	OrderType      string `json:"orderType"`
	Quantity       string `json:"quantity"`
	Price          string `json:"price,omitempty"`
	TimeInForce    string `json:"timeInForce,omitempty"`
}

// CancelOrderRequest cancels an order on Tradix
type CancelOrderRequest struct {
	OrderRef string `json:"orderRef"`
}

// SubscribeExecutionsRequest subscribes this session to execution report pushes
type SubscribeExecutionsRequest struct {
	Account string `json:"account,omitempty"`
}

// ExecutionReport is a raw fill notification pushed by the gateway. Tradix
// reports fill times in the venue's local zone as a naive timestamp plus a
// UTC offset in minutes; every consumer must normalize before comparing.
// Deliveries may be duplicated or arrive out of order across orders.
type ExecutionReport struct {
	OrderRef        string `json:"orderRef"`
	ExecutionID     string `json:"executionId"`
	Symbol          string `json:"symbol"`
	Time            string `json:"time"`         // e.g. "2026-03-09T14:30:05"
	UTCOffsetMin    int    `json:"utcOffsetMin"` // venue-local offset from UTC
	Quantity        string `json:"quantity"`
	Price           string `json:"price"`
	Side            string `json:"side,omitempty"`
	LiquidityFlag   string `json:"liquidityFlag,omitempty"`
	SequenceOnWire  int64  `json:"seq,omitempty"`
}

// StatusReport is a raw non-fill order status notification
type StatusReport struct {
	OrderRef string `json:"orderRef"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// HistoryRequest is the pull-side query for executed fills in a UTC range
type HistoryRequest struct {
	FromUTC string `json:"from"`
	ToUTC   string `json:"to"`
}

// HistoryPage is one page of replayed execution reports. Wire order is
// unspecified; callers must sort.
type HistoryPage struct {
	Executions []ExecutionReport `json:"executions"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// ErrorResponse is the gateway/history API error body
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Order state names as reported by Tradix
const (
	OrderStateWorking  = "working"
	OrderStateFilled   = "filled"
	OrderStatePartial  = "partiallyFilled"
	OrderStateCanceled = "canceled"
	OrderStateRejected = "rejected"
)
