package solbc

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int
	Name string
	Msg  string
}

// ErrorAnalyzer extracts program failures from transaction or bundle logs
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeLogs returns every Anchor error found in the logs, in log order.
func (ea *ErrorAnalyzer) AnalyzeLogs(logs []string) []AnchorError {
	var found []AnchorError
	for _, line := range logs {
		if !strings.Contains(line, "AnchorError") {
			continue
		}
		anchorErr := parseAnchorErrorLog(line)
		ea.logger.Warn("Anchor error detected",
			zap.Int("code", anchorErr.Code),
			zap.String("name", anchorErr.Name),
			zap.String("message", anchorErr.Msg))
		found = append(found, anchorErr)
	}
	return found
}

// IsSlippageFailure reports whether the logs show a slippage guard tripping,
// i.e. reserves moved after quoting and the bundle must be re-quoted.
func (ea *ErrorAnalyzer) IsSlippageFailure(logs []string) bool {
	for _, e := range ea.AnalyzeLogs(logs) {
		// 6002 TooMuchSolRequired (pump.fun), 6004 ExceededSlippage (PumpSwap)
		if e.Code == 6002 || e.Code == 6004 || strings.Contains(strings.ToLower(e.Name), "slippage") {
			return true
		}
	}
	for _, line := range logs {
		if strings.Contains(line, "custom program error: 0x1772") || strings.Contains(line, "custom program error: 0x1774") {
			return true
		}
	}
	return false
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: ExceededSlippage. Error Number: 6004. Error Message: Exceeded slippage."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	// Extract error code
	if parts := strings.SplitN(logStr, "Error Number:", 2); len(parts) == 2 {
		numParts := strings.Split(parts[1], ".")
		fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
	}

	// Extract error name
	if parts := strings.SplitN(logStr, "Error Code:", 2); len(parts) == 2 {
		result.Name = strings.TrimSpace(strings.Split(parts[1], ".")[0])
	}

	// Extract error message
	if parts := strings.SplitN(logStr, "Error Message:", 2); len(parts) == 2 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
	}

	return result
}
