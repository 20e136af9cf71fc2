package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeBadParameter       ErrorCode = 100
	ErrCodeTimeRewind         ErrorCode = 101
	ErrCodeInvalidConfig      ErrorCode = 102
	ErrCodeDuplicateRequest   ErrorCode = 103
	ErrCodeTradeAlreadyClosed ErrorCode = 105

	// Account errors (200-299)
	ErrCodeAccountStopped    ErrorCode = 200
	ErrCodeAccountNotStopped ErrorCode = 201
	ErrCodeAccountConflict   ErrorCode = 202
	ErrCodeAccountNotFound   ErrorCode = 203

	// Order errors (300-399)
	ErrCodeBuyLimitReached  ErrorCode = 300
	ErrCodeSellLimitReached ErrorCode = 301
	ErrCodeCashError        ErrorCode = 302
	ErrCodePositionError    ErrorCode = 303
	ErrCodeNoLiquidity      ErrorCode = 304
	ErrCodeVolumeNotMeet    ErrorCode = 305

	// Market data errors (400-499)
	ErrCodeFeedFailed        ErrorCode = 400
	ErrCodeMarketDataMissing ErrorCode = 401

	// Persistence errors (500-599)
	ErrCodeSnapshotFailed ErrorCode = 500
	ErrCodeExportFailed   ErrorCode = 501
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:            "unknown",
	ErrCodeBadParameter:       "bad_parameter",
	ErrCodeTimeRewind:         "time_rewind",
	ErrCodeInvalidConfig:      "invalid_config",
	ErrCodeDuplicateRequest:   "duplicate_request",
	ErrCodeTradeAlreadyClosed: "trade_already_closed",
	ErrCodeAccountStopped:     "account_stopped",
	ErrCodeAccountNotStopped:  "account_not_stopped",
	ErrCodeAccountConflict:    "account_conflict",
	ErrCodeAccountNotFound:    "account_not_found",
	ErrCodeBuyLimitReached:    "buy_limit_reached",
	ErrCodeSellLimitReached:   "sell_limit_reached",
	ErrCodeCashError:          "cash_error",
	ErrCodePositionError:      "position_error",
	ErrCodeNoLiquidity:        "no_liquidity",
	ErrCodeVolumeNotMeet:      "volume_not_meet",
	ErrCodeFeedFailed:         "feed_failed",
	ErrCodeMarketDataMissing:  "market_data_missing",
	ErrCodeSnapshotFailed:     "snapshot_failed",
	ErrCodeExportFailed:       "export_failed",
}

// String returns the snake case name of the code, used as a metric label.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return "unknown"
}
