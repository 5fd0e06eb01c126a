// Package logging provides structured logging for tradetally.
//
// The Logger wraps Zap with:
//   - context field injection (trace_id, span_id, request.id, user.id)
//   - secret redaction by field name and value pattern
//   - level-aware sampling (errors are never sampled)
//   - optional OpenTelemetry log output through the otelzap bridge
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithUserID(ctx, "user_2abc")
//	logger.Info(ctx, "trade created", zap.String("symbol", "XAUUSD"))
//
// Tests should use NewTestLogger and its Assert helpers.
package logging
